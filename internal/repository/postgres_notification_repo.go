package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brcolf/naarscars/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// InsertAll は複数の通知レコードを挿入する（ファンアウト）。
// 受信者ごとに1行。全行を同一トランザクションで挿入する。
func (r *PostgresNotificationRepo) InsertAll(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notifications (id, user_id, type, subject_id, body, read, pinned, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("通知挿入の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, n := range notifications {
		_, err := stmt.ExecContext(ctx,
			n.ID, n.UserID, n.Type, n.SubjectID, n.Body, n.Read, n.Pinned, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("通知の挿入に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// ListBell はベルフィード（message種別を除く通知一覧）を新しい順に返す。
// message種別の除外はWHERE句で行う。ピン留めされたお知らせを先頭に出す。
func (r *PostgresNotificationRepo) ListBell(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	return r.list(ctx,
		`SELECT id, user_id, type, subject_id, body, read, pinned, created_at
		 FROM notifications
		 WHERE user_id = $1 AND type <> 'message'
		 ORDER BY pinned DESC, created_at DESC
		 LIMIT $2`,
		userID, limit)
}

// ListMessages はmessage種別の通知一覧を新しい順に返す。
func (r *PostgresNotificationRepo) ListMessages(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	return r.list(ctx,
		`SELECT id, user_id, type, subject_id, body, read, pinned, created_at
		 FROM notifications
		 WHERE user_id = $1 AND type = 'message'
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
}

func (r *PostgresNotificationRepo) list(ctx context.Context, query string, args ...interface{}) ([]*model.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.SubjectID, &n.Body, &n.Read, &n.Pinned, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗しました: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知一覧の走査に失敗しました: %w", err)
	}
	return out, nil
}

// MarkRead は本人宛の通知を既読にする。
// user_idの一致を要求することで他人の通知の既読化を防ぐ。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE
		 WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected == 1, nil
}

// MarkAllRead は本人宛の未読通知をすべて既読にする。
func (r *PostgresNotificationRepo) MarkAllRead(ctx context.Context, userID string, includeMessages bool) error {
	query := `UPDATE notifications SET read = TRUE
	          WHERE user_id = $1 AND read = FALSE AND type <> 'message'`
	if includeMessages {
		query = `UPDATE notifications SET read = TRUE
		         WHERE user_id = $1 AND read = FALSE`
	}

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("通知の一括既読化に失敗しました: %w", err)
	}
	return nil
}

// CountUnread は未読数を集計する。message種別とそれ以外は必ず分離して数える。
// FILTER句による単一スキャンの集計で、常に権威ストアの現在値を返す。
func (r *PostgresNotificationRepo) CountUnread(ctx context.Context, userID string) (model.Counts, error) {
	var counts model.Counts
	err := r.db.QueryRowContext(ctx,
		`SELECT
		     COUNT(*) FILTER (WHERE type = 'message'),
		     COUNT(*) FILTER (WHERE type <> 'message')
		 FROM notifications
		 WHERE user_id = $1 AND read = FALSE`,
		userID,
	).Scan(&counts.UnreadMessages, &counts.UnreadNotifications)
	if err != nil {
		return model.Counts{}, fmt.Errorf("未読数の集計に失敗しました: %w", err)
	}
	return counts, nil
}

// SetPinned はannouncement種別の通知のピン留め状態を変更する。
func (r *PostgresNotificationRepo) SetPinned(ctx context.Context, notificationID string, pinned bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET pinned = $2
		 WHERE id = $1 AND type = 'announcement'`,
		notificationID, pinned,
	)
	if err != nil {
		return fmt.Errorf("ピン留め状態の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteReadOlderThan は指定日数より古い既読通知を削除する。
// ピン留めされたお知らせは残す。冪等: 削除対象がなくてもエラーにならない。
func (r *PostgresNotificationRepo) DeleteReadOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	interval := fmt.Sprintf("%d days", retentionDays)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications
		 WHERE read = TRUE AND pinned = FALSE AND created_at < now() - $1::interval`,
		interval,
	)
	if err != nil {
		return 0, fmt.Errorf("既読通知の削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
