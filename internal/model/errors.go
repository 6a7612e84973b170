// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// サービス層はすべてのドメインエラーを型付きで返し、
// ハンドラーがコードからHTTPステータスへマッピングする。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, request, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeAlreadyClaimed      = "ALREADY_CLAIMED"
	ErrCodeMissingPhoneNumber  = "MISSING_PHONE_NUMBER"
	ErrCodeNotClaimant         = "NOT_CLAIMANT"
	ErrCodeRequestNotFound     = "REQUEST_NOT_FOUND"
	ErrCodeRequestNotClaimed   = "REQUEST_NOT_CLAIMED"
	ErrCodeRequestCompleted    = "REQUEST_COMPLETED"
	ErrCodeRequestNotCompleted = "REQUEST_NOT_COMPLETED"
	ErrCodeNotParticipant      = "NOT_PARTICIPANT"
	ErrCodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeInvalidInviteCode   = "INVALID_INVITE_CODE"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeAlreadyReviewed     = "ALREADY_REVIEWED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidRequestKind  = "INVALID_REQUEST_KIND"
	ErrCodeInvalidRating       = "INVALID_RATING"
	ErrCodeEmptyMessage        = "EMPTY_MESSAGE"
	ErrCodeEmptyTitle          = "EMPTY_TITLE"
	ErrCodeWeakPassword        = "WEAK_PASSWORD"
)

// NewRateLimitedError はレート制限エラーを生成する。
// 自動リトライせず、待機を促すUIを表示すること。
func NewRateLimitedError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  fmt.Sprintf("操作が連続しています: %s", action),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAlreadyClaimedError は引き受け競合エラーを生成する。
// 他のユーザーが先に引き受けた場合に返される。
// 競合として表示し、自分の引き受けとして扱ってはならない。
func NewAlreadyClaimedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyClaimed,
		Message:  "この依頼はすでに他のメンバーが引き受けています。",
		Category: "request",
		Action:   "一覧を更新して最新の状態を確認してください。",
	}
}

// NewMissingPhoneNumberError は電話番号未検証エラーを生成する。
// 呼び出し元はプロフィール入力画面へ誘導してから再試行させること。
func NewMissingPhoneNumberError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingPhoneNumber,
		Message:  "引き受けには検証済みの電話番号が必要です。",
		Category: "profile",
		Action:   "プロフィールで電話番号を登録・検証してから再度お試しください。",
	}
}

// NewNotClaimantError は引き受け者以外による操作エラーを生成する。
func NewNotClaimantError() *APIError {
	return &APIError{
		Code:     ErrCodeNotClaimant,
		Message:  "この依頼の引き受け者ではありません。",
		Category: "auth",
		Action:   "操作できるのは現在の引き受け者のみです。",
	}
}

// NewRequestNotFoundError は依頼未検出エラーを生成する。
func NewRequestNotFoundError(requestID string) *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotFound,
		Message:  fmt.Sprintf("指定された依頼が見つかりません: %s", requestID),
		Category: "request",
		Action:   "依頼IDを確認してください。",
	}
}

// NewRequestNotClaimedError は未引き受け状態での操作エラーを生成する。
func NewRequestNotClaimedError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotClaimed,
		Message:  "この依頼はまだ引き受けられていません。",
		Category: "request",
		Action:   "引き受け後に操作可能になります。",
	}
}

// NewRequestCompletedError は完了済み依頼への操作エラーを生成する。
func NewRequestCompletedError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestCompleted,
		Message:  "この依頼はすでに完了しています。",
		Category: "request",
		Action:   "完了済みの依頼は変更できません。",
	}
}

// NewRequestNotCompletedError は未完了依頼へのレビューエラーを生成する。
func NewRequestNotCompletedError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotCompleted,
		Message:  "この依頼はまだ完了していません。",
		Category: "request",
		Action:   "レビューは依頼の完了後に可能になります。",
	}
}

// NewNotParticipantError は会話の非参加者による操作エラーを生成する。
func NewNotParticipantError() *APIError {
	return &APIError{
		Code:     ErrCodeNotParticipant,
		Message:  "この会話の参加者ではありません。",
		Category: "auth",
		Action:   "参加している会話のみ操作できます。",
	}
}

// NewConversationNotFoundError は会話未検出エラーを生成する。
func NewConversationNotFoundError(conversationID string) *APIError {
	return &APIError{
		Code:     ErrCodeConversationNotFound,
		Message:  fmt.Sprintf("指定された会話が見つかりません: %s", conversationID),
		Category: "request",
		Action:   "会話IDを確認してください。",
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError(notificationID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %s", notificationID),
		Category: "request",
		Action:   "通知IDを確認してください。",
	}
}

// NewInvalidInviteCodeError は無効な招待コードエラーを生成する。
// 未存在・使用済み・期限切れは区別せず同一のエラーを返す
// （コード探索への情報漏えいを避ける）。
func NewInvalidInviteCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInviteCode,
		Message:  "招待コードが無効です。",
		Category: "validation",
		Action:   "招待者にコードを確認してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスはすでに登録されています。",
		Category: "validation",
		Action:   "ログインするか、別のメールアドレスをお使いください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAlreadyReviewedError はレビュー重複エラーを生成する。
func NewAlreadyReviewedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyReviewed,
		Message:  "この依頼はすでにレビュー済みです。",
		Category: "request",
		Action:   "レビューは1依頼につき1回までです。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者のみ実行できる操作です。",
	}
}

// NewInvalidRequestKindError は無効な依頼種別エラーを生成する。
func NewInvalidRequestKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequestKind,
		Message:  fmt.Sprintf("無効な依頼種別です: %s", kind),
		Category: "validation",
		Action:   "種別には ride または favor を指定してください。",
	}
}

// NewInvalidRatingError は無効な評価値エラーを生成する。
func NewInvalidRatingError(rating int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("無効な評価値です: %d", rating),
		Category: "validation",
		Action:   "評価は1から5の整数で指定してください。",
	}
}

// NewEmptyMessageError は空メッセージ送信エラーを生成する。
func NewEmptyMessageError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyMessage,
		Message:  "メッセージ本文が空です。",
		Category: "validation",
		Action:   "本文を入力してから送信してください。",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードは8文字以上にしてください。",
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewEmptyTitleError はタイトル未入力エラーを生成する。
func NewEmptyTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyTitle,
		Message:  "依頼のタイトルが空です。",
		Category: "validation",
		Action:   "タイトルを入力してから投稿してください。",
	}
}
