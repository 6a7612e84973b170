package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brcolf/naarscars/internal/model"
)

// PostgresReviewRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresReviewRepo struct {
	db *sql.DB
}

// NewPostgresReviewRepo はPostgresReviewRepoを生成する。
func NewPostgresReviewRepo(db *sql.DB) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: db}
}

// Create はレビューを作成する。(request_id, reviewer_id)重複時はErrDuplicateを返す。
func (r *PostgresReviewRepo) Create(ctx context.Context, review *model.Review) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, request_id, reviewer_id, reviewee_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.ID, review.RequestID, review.ReviewerID, review.RevieweeID,
		review.Rating, review.Comment, review.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("レビューの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByRequestAndReviewer は依頼とレビュアーの組でレビューを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresReviewRepo) FindByRequestAndReviewer(ctx context.Context, requestID, reviewerID string) (*model.Review, error) {
	review := &model.Review{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, request_id, reviewer_id, reviewee_id, rating, comment, created_at
		 FROM reviews WHERE request_id = $1 AND reviewer_id = $2`,
		requestID, reviewerID,
	).Scan(
		&review.ID, &review.RequestID, &review.ReviewerID, &review.RevieweeID,
		&review.Rating, &review.Comment, &review.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("レビューの検索に失敗しました: %w", err)
	}
	return review, nil
}

// ListByReviewee は指定ユーザーが受けたレビュー一覧を新しい順に返す。
func (r *PostgresReviewRepo) ListByReviewee(ctx context.Context, revieweeID string, limit int) ([]*model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, reviewer_id, reviewee_id, rating, comment, created_at
		 FROM reviews WHERE reviewee_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		revieweeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reviews []*model.Review
	for rows.Next() {
		review := &model.Review{}
		if err := rows.Scan(
			&review.ID, &review.RequestID, &review.ReviewerID, &review.RevieweeID,
			&review.Rating, &review.Comment, &review.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("レビュー行の読み取りに失敗しました: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レビュー一覧の走査に失敗しました: %w", err)
	}
	return reviews, nil
}

// compile-time interface check
var _ ReviewRepository = (*PostgresReviewRepo)(nil)
