package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brcolf/naarscars/internal/model"
)

// PostgresRequestRepo はPostgreSQLを使用した依頼リポジトリ。
type PostgresRequestRepo struct {
	db *sql.DB
}

// NewPostgresRequestRepo はPostgresRequestRepoを生成する。
func NewPostgresRequestRepo(db *sql.DB) *PostgresRequestRepo {
	return &PostgresRequestRepo{db: db}
}

const requestColumns = `id, kind, poster_id, claimant_id, status, title, description,
	origin, destination, needed_at, reviewed, review_skipped, review_skipped_at,
	created_at, updated_at`

// scanRequest は1行を*model.Requestに読み取る。
func scanRequest(row interface {
	Scan(dest ...interface{}) error
}) (*model.Request, error) {
	req := &model.Request{}
	var claimantID sql.NullString
	var neededAt, reviewSkippedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.Kind, &req.PosterID, &claimantID, &req.Status,
		&req.Title, &req.Description, &req.Origin, &req.Destination,
		&neededAt, &req.Reviewed, &req.ReviewSkipped, &reviewSkippedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if claimantID.Valid {
		req.ClaimantID = &claimantID.String
	}
	if neededAt.Valid {
		req.NeededAt = &neededAt.Time
	}
	if reviewSkippedAt.Valid {
		req.ReviewSkippedAt = &reviewSkippedAt.Time
	}

	return req, nil
}

// FindByID は指定IDの依頼を取得する。見つからない場合はnilを返す。
func (r *PostgresRequestRepo) FindByID(ctx context.Context, id string) (*model.Request, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("依頼の取得に失敗しました: %w", err)
	}
	return req, nil
}

// Create は依頼を作成する。
func (r *PostgresRequestRepo) Create(ctx context.Context, req *model.Request) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO requests (id, kind, poster_id, status, title, description,
		     origin, destination, needed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.Kind, req.PosterID, req.Status,
		req.Title, req.Description, req.Origin, req.Destination,
		req.NeededAt, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("依頼の作成に失敗しました: %w", err)
	}
	return nil
}

// ListOpen は未引き受けの依頼一覧を新しい順に返す。
func (r *PostgresRequestRepo) ListOpen(ctx context.Context, limit int) ([]*model.Request, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE status = 'open' ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListByPoster は指定ユーザーが投稿した依頼一覧を新しい順に返す。
func (r *PostgresRequestRepo) ListByPoster(ctx context.Context, posterID string, limit int) ([]*model.Request, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE poster_id = $1 ORDER BY created_at DESC LIMIT $2`, posterID, limit)
}

// ListByClaimant は指定ユーザーが引き受けた依頼一覧を新しい順に返す。
func (r *PostgresRequestRepo) ListByClaimant(ctx context.Context, claimantID string, limit int) ([]*model.Request, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE claimant_id = $1 ORDER BY created_at DESC LIMIT $2`, claimantID, limit)
}

func (r *PostgresRequestRepo) list(ctx context.Context, query string, args ...interface{}) ([]*model.Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("依頼一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reqs []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("依頼行の読み取りに失敗しました: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("依頼一覧の走査に失敗しました: %w", err)
	}
	return reqs, nil
}

// ClaimIfOpen はstatus='open'の依頼を条件付きUPDATEで引き受け状態へ遷移させる。
// WHERE句のガードにより、同時の引き受け試行のうち成功するのは常に1つだけ。
// 影響行数が0の場合はfalseを返す。
func (r *PostgresRequestRepo) ClaimIfOpen(ctx context.Context, requestID, claimantID string, target model.RequestStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE requests
		 SET status = $3, claimant_id = $2, updated_at = now()
		 WHERE id = $1 AND status = 'open'`,
		requestID, claimantID, target,
	)
	if err != nil {
		return false, fmt.Errorf("依頼の引き受け更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected == 1, nil
}

// ReleaseIfClaimant は引き受け者本人による取り下げを条件付きUPDATEで行う。
// claimant_idの一致を要求することで認可チェックを兼ねる。
func (r *PostgresRequestRepo) ReleaseIfClaimant(ctx context.Context, requestID, claimantID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE requests
		 SET status = 'open', claimant_id = NULL, updated_at = now()
		 WHERE id = $1 AND claimant_id = $2 AND status IN ('pending', 'confirmed')`,
		requestID, claimantID,
	)
	if err != nil {
		return false, fmt.Errorf("依頼の取り下げ更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected == 1, nil
}

// CompleteIfClaimed は引き受け済みの依頼を完了へ遷移させる。
// completedは終端状態で、以降の状態遷移は存在しない。
func (r *PostgresRequestRepo) CompleteIfClaimed(ctx context.Context, requestID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE requests
		 SET status = 'completed', updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'confirmed')`,
		requestID,
	)
	if err != nil {
		return false, fmt.Errorf("依頼の完了更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected == 1, nil
}

// UpdateReviewState はレビュー追跡フィールドを更新する。
func (r *PostgresRequestRepo) UpdateReviewState(ctx context.Context, requestID string, reviewed, skipped bool, skippedAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE requests
		 SET reviewed = $2, review_skipped = $3, review_skipped_at = $4, updated_at = now()
		 WHERE id = $1`,
		requestID, reviewed, skipped, skippedAt,
	)
	if err != nil {
		return fmt.Errorf("レビュー状態の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RequestRepository = (*PostgresRequestRepo)(nil)
