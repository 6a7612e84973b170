// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/brcolf/naarscars/internal/model"
)

// ErrDuplicate は一意制約違反を表す番兵エラー。
// 同時作成レースの敗者側が検出し、再クエリへフォールバックするために使う。
var ErrDuplicate = errDuplicate{}

type errDuplicate struct{}

func (errDuplicate) Error() string { return "duplicate key" }

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePhone は電話番号と検証フラグを更新する。
	UpdatePhone(ctx context.Context, userID, phone string, verified bool) error

	// UpdatePasswordHash はパスワードハッシュを更新する。
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error

	// ListAllIDs は全ユーザーIDを返す。お知らせのファンアウト対象の列挙に使う。
	ListAllIDs(ctx context.Context) ([]string, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// ListActiveUserIDs は有効期限内のセッションを持つユーザーIDを返す。
	// バッジ再集計ワーカーの巡回対象の列挙に使う。
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

// PasswordResetRepository はパスワード再設定トークンの永続化インターフェース。
type PasswordResetRepository interface {
	// Create は再設定トークンを作成する。
	Create(ctx context.Context, reset *model.PasswordReset) error
	// Consume はトークンを取得して削除する。見つからないか期限切れの場合はnilを返す。
	Consume(ctx context.Context, token string) (*model.PasswordReset, error)
}

// RequestRepository は依頼データの永続化インターフェース。
//
// 状態遷移はすべて期待する前状態をWHERE句に含む条件付きUPDATEで行い、
// 影響行数で成否を判定する。ガードなしのread-modify-writeは禁止。
type RequestRepository interface {
	// FindByID は指定IDの依頼を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Request, error)

	// Create は依頼を作成する。
	Create(ctx context.Context, req *model.Request) error

	// ListOpen は未引き受けの依頼一覧を新しい順に返す。
	ListOpen(ctx context.Context, limit int) ([]*model.Request, error)

	// ListByPoster は指定ユーザーが投稿した依頼一覧を新しい順に返す。
	ListByPoster(ctx context.Context, posterID string, limit int) ([]*model.Request, error)

	// ListByClaimant は指定ユーザーが引き受けた依頼一覧を新しい順に返す。
	ListByClaimant(ctx context.Context, claimantID string, limit int) ([]*model.Request, error)

	// ClaimIfOpen はstatus='open'の依頼を条件付きUPDATEで引き受け状態へ遷移させる。
	// 影響行数が0の場合はfalseを返す（先に他者が引き受けた）。
	ClaimIfOpen(ctx context.Context, requestID, claimantID string, target model.RequestStatus) (bool, error)

	// ReleaseIfClaimant は引き受け者本人による取り下げを条件付きUPDATEで行う。
	// WHERE claimant_id = $claimant AND status IN ('pending','confirmed')。
	// 影響行数が0の場合はfalseを返す。
	ReleaseIfClaimant(ctx context.Context, requestID, claimantID string) (bool, error)

	// CompleteIfClaimed は引き受け済みの依頼を完了へ遷移させる。
	// WHERE status IN ('pending','confirmed')。影響行数が0の場合はfalseを返す。
	CompleteIfClaimed(ctx context.Context, requestID string) (bool, error)

	// UpdateReviewState はレビュー追跡フィールドを更新する。
	// completed後に変更可能な唯一のフィールド群。
	UpdateReviewState(ctx context.Context, requestID string, reviewed, skipped bool, skippedAt *time.Time) error
}

// ConversationRepository は会話データの永続化インターフェース。
type ConversationRepository interface {
	// FindByID は指定IDの会話を参加者付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Conversation, error)

	// FindBySubjectRequest は依頼に紐付く会話を検索する。見つからない場合はnilを返す。
	FindBySubjectRequest(ctx context.Context, requestID string) (*model.Conversation, error)

	// FindByParticipantKey は参加者キーでダイレクトメッセージ会話を検索する。
	// 見つからない場合はnilを返す。
	FindByParticipantKey(ctx context.Context, key string) (*model.Conversation, error)

	// Create は会話と参加者を同一トランザクションで作成する。
	// 一意制約違反（同時作成レースの敗者）の場合はErrDuplicateを返す。
	Create(ctx context.Context, conv *model.Conversation) error

	// ListByUser は指定ユーザーが参加する会話一覧を新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Conversation, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, msg *model.Message) error

	// ListByConversation は会話のメッセージを新しい順にカーソル付きで返す。
	// cursorがゼロ値の場合は先頭から取得する。
	ListByConversation(ctx context.Context, conversationID string, cursor time.Time, limit int) ([]*model.Message, error)
}

// NotificationRepository は通知データの永続化インターフェース。
type NotificationRepository interface {
	// InsertAll は複数の通知レコードを挿入する（ファンアウト）。
	InsertAll(ctx context.Context, notifications []*model.Notification) error

	// ListBell はベルフィード（message種別を除く通知一覧）を新しい順に返す。
	// message種別の除外はSQLレベルで行い、呼び出し側のフィルタリングに頼らない。
	ListBell(ctx context.Context, userID string, limit int) ([]*model.Notification, error)

	// ListMessages はmessage種別の通知一覧を新しい順に返す。
	ListMessages(ctx context.Context, userID string, limit int) ([]*model.Notification, error)

	// MarkRead は本人宛の通知を既読にする。対象がない場合はfalseを返す。
	MarkRead(ctx context.Context, notificationID, userID string) (bool, error)

	// MarkAllRead は本人宛の未読通知をすべて既読にする。message種別の
	// 含否はincludeMessagesで制御する。
	MarkAllRead(ctx context.Context, userID string, includeMessages bool) error

	// CountUnread は未読数を集計する。message種別とそれ以外を分けて返す。
	// 常に権威ストアへの集計クエリであり、キャッシュを参照しない。
	CountUnread(ctx context.Context, userID string) (model.Counts, error)

	// SetPinned はannouncement種別の通知のピン留め状態を変更する。
	SetPinned(ctx context.Context, notificationID string, pinned bool) error

	// DeleteReadOlderThan は指定日数より古い既読通知を削除する。
	// ピン留めされたお知らせは削除対象外。削除件数を返す。
	DeleteReadOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// InviteRepository は招待コードの永続化インターフェース。
type InviteRepository interface {
	// Create は招待コードを作成する。
	Create(ctx context.Context, invite *model.InviteCode) error

	// FindByCode はコード文字列で招待を検索する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.InviteCode, error)

	// RedeemIfUnused は未使用かつ期限内のコードを条件付きUPDATEで消費する。
	// WHERE used_by IS NULL AND expires_at > now()。
	// 影響行数が0の場合はfalseを返す。
	RedeemIfUnused(ctx context.Context, code, userID string) (bool, error)

	// ListByCreator は指定ユーザーが発行した招待一覧を新しい順に返す。
	ListByCreator(ctx context.Context, userID string) ([]*model.InviteCode, error)
}

// ReviewRepository はレビューデータの永続化インターフェース。
type ReviewRepository interface {
	// Create はレビューを作成する。(request_id, reviewer_id)重複時はErrDuplicateを返す。
	Create(ctx context.Context, review *model.Review) error

	// FindByRequestAndReviewer は依頼とレビュアーの組でレビューを検索する。
	// 見つからない場合はnilを返す。
	FindByRequestAndReviewer(ctx context.Context, requestID, reviewerID string) (*model.Review, error)

	// ListByReviewee は指定ユーザーが受けたレビュー一覧を新しい順に返す。
	ListByReviewee(ctx context.Context, revieweeID string, limit int) ([]*model.Review, error)
}
