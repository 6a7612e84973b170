package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brcolf/naarscars/internal/model"
)

// PostgresInviteRepo はPostgreSQLを使用した招待コードリポジトリ。
type PostgresInviteRepo struct {
	db *sql.DB
}

// NewPostgresInviteRepo はPostgresInviteRepoを生成する。
func NewPostgresInviteRepo(db *sql.DB) *PostgresInviteRepo {
	return &PostgresInviteRepo{db: db}
}

const inviteColumns = `id, code, created_by, used_by, used_at, expires_at, created_at`

func scanInvite(row interface {
	Scan(dest ...interface{}) error
}) (*model.InviteCode, error) {
	invite := &model.InviteCode{}
	var usedBy sql.NullString
	var usedAt sql.NullTime

	err := row.Scan(
		&invite.ID, &invite.Code, &invite.CreatedBy,
		&usedBy, &usedAt, &invite.ExpiresAt, &invite.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if usedBy.Valid {
		invite.UsedBy = &usedBy.String
	}
	if usedAt.Valid {
		invite.UsedAt = &usedAt.Time
	}
	return invite, nil
}

// Create は招待コードを作成する。
func (r *PostgresInviteRepo) Create(ctx context.Context, invite *model.InviteCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invite_codes (id, code, created_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		invite.ID, invite.Code, invite.CreatedBy, invite.ExpiresAt, invite.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("招待コードの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByCode はコード文字列で招待を検索する。見つからない場合はnilを返す。
func (r *PostgresInviteRepo) FindByCode(ctx context.Context, code string) (*model.InviteCode, error) {
	invite, err := scanInvite(r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invite_codes WHERE code = $1`, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("招待コードの検索に失敗しました: %w", err)
	}
	return invite, nil
}

// RedeemIfUnused は未使用かつ期限内のコードを条件付きUPDATEで消費する。
// 同時の使用試行のうち成功するのは常に1つだけ（依頼の引き受けと同じCAS規律）。
func (r *PostgresInviteRepo) RedeemIfUnused(ctx context.Context, code, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invite_codes
		 SET used_by = $2, used_at = now()
		 WHERE code = $1 AND used_by IS NULL AND expires_at > now()`,
		code, userID,
	)
	if err != nil {
		return false, fmt.Errorf("招待コードの消費に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected == 1, nil
}

// ListByCreator は指定ユーザーが発行した招待一覧を新しい順に返す。
func (r *PostgresInviteRepo) ListByCreator(ctx context.Context, userID string) ([]*model.InviteCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+inviteColumns+` FROM invite_codes
		 WHERE created_by = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("招待一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var invites []*model.InviteCode
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("招待行の読み取りに失敗しました: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("招待一覧の走査に失敗しました: %w", err)
	}
	return invites, nil
}

// compile-time interface check
var _ InviteRepository = (*PostgresInviteRepo)(nil)
