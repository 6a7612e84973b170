package repository

import (
	"context"
	"fmt"
	"time"

	"database/sql"

	"github.com/brcolf/naarscars/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("メッセージの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByConversation は会話のメッセージを新しい順にカーソル付きで返す。
// cursorがゼロ値の場合は先頭から取得する。
func (r *PostgresMessageRepo) ListByConversation(ctx context.Context, conversationID string, cursor time.Time, limit int) ([]*model.Message, error) {
	query := `SELECT id, conversation_id, sender_id, body, created_at
	          FROM messages
	          WHERE conversation_id = $1
	          ORDER BY created_at DESC
	          LIMIT $2`
	args := []interface{}{conversationID, limit}

	if !cursor.IsZero() {
		query = `SELECT id, conversation_id, sender_id, body, created_at
		         FROM messages
		         WHERE conversation_id = $1 AND created_at < $3
		         ORDER BY created_at DESC
		         LIMIT $2`
		args = append(args, cursor)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		msg := &model.Message{}
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗しました: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージ一覧の走査に失敗しました: %w", err)
	}
	return msgs, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
