// Package review は完了済み依頼に対するレビューのドメインロジックを提供する。
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/repository"
	"github.com/brcolf/naarscars/internal/security"
)

// Service はレビューのサービス層。
//
// レビューはcompletedの依頼にのみ、当事者が相手方へ1回だけ書ける。
// 重複はデータベースの一意制約で裁定される。
type Service struct {
	reviewRepo repository.ReviewRepository
	reqRepo    repository.RequestRepository
	sanitizer  security.ContentSanitizerService
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reviewRepo repository.ReviewRepository,
	reqRepo repository.RequestRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		reviewRepo: reviewRepo,
		reqRepo:    reqRepo,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// Submit はレビューを登録する。レビュー対象は依頼の相手方に固定される。
func (s *Service) Submit(ctx context.Context, requestID, reviewerID string, rating int, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, model.NewInvalidRatingError(rating)
	}

	req, revieweeID, err := s.counterpart(ctx, requestID, reviewerID)
	if err != nil {
		return nil, err
	}

	review := &model.Review{
		ID:         uuid.New().String(),
		RequestID:  req.ID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     rating,
		Comment:    strings.TrimSpace(s.sanitizer.SanitizeMessage(comment)),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAlreadyReviewedError()
		}
		return nil, fmt.Errorf("レビューの登録に失敗しました: %w", err)
	}

	// レビュー追跡フィールドはcompleted後も変更できる唯一のフィールド群
	if err := s.reqRepo.UpdateReviewState(ctx, req.ID, true, false, nil); err != nil {
		s.logger.Warn("レビュー追跡フィールドの更新に失敗しました",
			"request_id", req.ID,
			"error", err)
	}
	return review, nil
}

// Skip はレビューの見送りを記録する。以後の促し表示を抑止するためのもの。
func (s *Service) Skip(ctx context.Context, requestID, userID string) error {
	req, _, err := s.counterpart(ctx, requestID, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.reqRepo.UpdateReviewState(ctx, req.ID, false, true, &now); err != nil {
		return fmt.Errorf("レビュー見送りの記録に失敗しました: %w", err)
	}
	return nil
}

// ListForUser は指定ユーザーが受けたレビュー一覧を返す。
func (s *Service) ListForUser(ctx context.Context, revieweeID string, limit int) ([]*model.Review, error) {
	reviews, err := s.reviewRepo.ListByReviewee(ctx, revieweeID, limit)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	return reviews, nil
}

// counterpart は依頼の完了と当事者性を検証し、相手方のユーザーIDを返す。
func (s *Service) counterpart(ctx context.Context, requestID, actorID string) (*model.Request, string, error) {
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, "", fmt.Errorf("依頼の取得に失敗しました: %w", err)
	}
	if req == nil {
		return nil, "", model.NewRequestNotFoundError(requestID)
	}
	if req.Status != model.RequestStatusCompleted {
		return nil, "", model.NewRequestNotCompletedError()
	}
	if req.ClaimantID == nil {
		// completedかつclaimantなしは不変条件違反。データ異常として扱う。
		return nil, "", fmt.Errorf("完了済み依頼に引き受け者が記録されていません: %s", req.ID)
	}

	switch actorID {
	case req.PosterID:
		return req, *req.ClaimantID, nil
	case *req.ClaimantID:
		return req, req.PosterID, nil
	default:
		return nil, "", model.NewForbiddenError()
	}
}
