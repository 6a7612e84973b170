package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// isUniqueViolation はエラーが一意制約違反かを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// PostgresConversationRepo はPostgreSQLを使用した会話リポジトリ。
type PostgresConversationRepo struct {
	db *sql.DB
}

// NewPostgresConversationRepo はPostgresConversationRepoを生成する。
func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

// FindByID は指定IDの会話を参加者付きで取得する。見つからない場合はnilを返す。
func (r *PostgresConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	return r.findOne(ctx, `SELECT id, subject_request_id, participant_key, created_at
		 FROM conversations WHERE id = $1`, id)
}

// FindBySubjectRequest は依頼に紐付く会話を検索する。見つからない場合はnilを返す。
func (r *PostgresConversationRepo) FindBySubjectRequest(ctx context.Context, requestID string) (*model.Conversation, error) {
	return r.findOne(ctx, `SELECT id, subject_request_id, participant_key, created_at
		 FROM conversations WHERE subject_request_id = $1`, requestID)
}

// FindByParticipantKey は参加者キーでダイレクトメッセージ会話を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresConversationRepo) FindByParticipantKey(ctx context.Context, key string) (*model.Conversation, error) {
	return r.findOne(ctx, `SELECT id, subject_request_id, participant_key, created_at
		 FROM conversations
		 WHERE participant_key = $1 AND subject_request_id IS NULL`, key)
}

func (r *PostgresConversationRepo) findOne(ctx context.Context, query string, arg interface{}) (*model.Conversation, error) {
	conv := &model.Conversation{}
	var subjectRequestID sql.NullString

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&conv.ID, &subjectRequestID, &conv.ParticipantKey, &conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("会話の取得に失敗しました: %w", err)
	}

	if subjectRequestID.Valid {
		conv.SubjectRequestID = &subjectRequestID.String
	}

	participants, err := r.loadParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	conv.ParticipantIDs = participants

	return conv, nil
}

func (r *PostgresConversationRepo) loadParticipants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM conversation_participants
		 WHERE conversation_id = $1 ORDER BY user_id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("会話参加者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("会話参加者の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("会話参加者の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// Create は会話と参加者を同一トランザクションで作成する。
// subject_request_idまたはparticipant_keyの一意制約に違反した場合は
// ErrDuplicateを返し、呼び出し側が既存行の再クエリへフォールバックする。
func (r *PostgresConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, subject_request_id, participant_key, created_at)
		 VALUES ($1, $2, $3, $4)`,
		conv.ID, conv.SubjectRequestID, conv.ParticipantKey, conv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("会話の作成に失敗しました: %w", err)
	}

	for _, userID := range conv.ParticipantIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id)
			 VALUES ($1, $2)`,
			conv.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("会話参加者の作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// ListByUser は指定ユーザーが参加する会話一覧を新しい順に返す。
func (r *PostgresConversationRepo) ListByUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.subject_request_id, c.participant_key, c.created_at
		 FROM conversations c
		 JOIN conversation_participants cp ON cp.conversation_id = c.id
		 WHERE cp.user_id = $1
		 ORDER BY c.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		conv := &model.Conversation{}
		var subjectRequestID sql.NullString
		if err := rows.Scan(&conv.ID, &subjectRequestID, &conv.ParticipantKey, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("会話行の読み取りに失敗しました: %w", err)
		}
		if subjectRequestID.Valid {
			conv.SubjectRequestID = &subjectRequestID.String
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("会話一覧の走査に失敗しました: %w", err)
	}

	for _, conv := range convs {
		participants, err := r.loadParticipants(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		conv.ParticipantIDs = participants
	}

	return convs, nil
}

// compile-time interface check
var _ ConversationRepository = (*PostgresConversationRepo)(nil)
