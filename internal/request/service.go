// Package request は依頼ライフサイクルのドメインロジックを提供する。
//
// 状態遷移は open → pending/confirmed → completed の一方向で、すべて
// 条件付きUPDATEの影響行数で裁定する。引き受け者は高々1人であり、
// 競合の敗者には衝突がそのまま報告される。
package request

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brcolf/naarscars/internal/events"
	"github.com/brcolf/naarscars/internal/metrics"
	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/ratelimit"
	"github.com/brcolf/naarscars/internal/repository"
)

// Notifier はベル通知のファンアウトインターフェース。
type Notifier interface {
	Notify(ctx context.Context, typ model.NotificationType, recipientIDs []string, subjectID, body string) ([]*model.Notification, error)
}

// Binder は依頼に紐付く会話の冪等な作成インターフェース。
type Binder interface {
	GetOrCreateForRequest(ctx context.Context, requestID string, participantIDs []string) (*model.Conversation, error)
}

// Limiter は連打抑止のインターフェース。
type Limiter interface {
	Allow(actorID string, action ratelimit.Action) bool
}

// CreateInput は依頼作成の入力。
type CreateInput struct {
	Kind        string
	Title       string
	Description string
	Origin      string
	Destination string
	NeededAt    *time.Time
}

// Service は依頼ライフサイクルのサービス層。
type Service struct {
	reqRepo  repository.RequestRepository
	profile  ProfileChecker
	binder   Binder
	limiter  Limiter
	notifier Notifier
	stream   events.Stream
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reqRepo repository.RequestRepository,
	profile ProfileChecker,
	binder Binder,
	limiter Limiter,
	notifier Notifier,
	stream events.Stream,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		reqRepo:  reqRepo,
		profile:  profile,
		binder:   binder,
		limiter:  limiter,
		notifier: notifier,
		stream:   stream,
		metrics:  collector,
		logger:   logger,
	}
}

// Create は依頼を作成する。作成直後の状態は常にopen。
func (s *Service) Create(ctx context.Context, posterID string, input CreateInput) (*model.Request, error) {
	if !model.ValidRequestKind(input.Kind) {
		return nil, model.NewInvalidRequestKindError(input.Kind)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewEmptyTitleError()
	}

	now := time.Now().UTC()
	req := &model.Request{
		ID:          uuid.New().String(),
		Kind:        model.RequestKind(input.Kind),
		PosterID:    posterID,
		Status:      model.RequestStatusOpen,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Origin:      strings.TrimSpace(input.Origin),
		Destination: strings.TrimSpace(input.Destination),
		NeededAt:    input.NeededAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.reqRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("依頼の作成に失敗しました: %w", err)
	}
	return req, nil
}

// Get は依頼を取得する。
func (s *Service) Get(ctx context.Context, requestID string) (*model.Request, error) {
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("依頼の取得に失敗しました: %w", err)
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(requestID)
	}
	return req, nil
}

// ListOpen は未引き受けの依頼一覧を返す。
func (s *Service) ListOpen(ctx context.Context, limit int) ([]*model.Request, error) {
	requests, err := s.reqRepo.ListOpen(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("依頼一覧の取得に失敗しました: %w", err)
	}
	return requests, nil
}

// ListPosted は指定ユーザーが投稿した依頼一覧を返す。
func (s *Service) ListPosted(ctx context.Context, userID string, limit int) ([]*model.Request, error) {
	requests, err := s.reqRepo.ListByPoster(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("投稿依頼一覧の取得に失敗しました: %w", err)
	}
	return requests, nil
}

// ListClaimed は指定ユーザーが引き受けた依頼一覧を返す。
func (s *Service) ListClaimed(ctx context.Context, userID string, limit int) ([]*model.Request, error) {
	requests, err := s.reqRepo.ListByClaimant(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("引き受け依頼一覧の取得に失敗しました: %w", err)
	}
	return requests, nil
}

// Claim は依頼を引き受ける。
//
// 前提条件の検証順は 検証済み電話番号 → クールダウン → 条件付きUPDATE。
// 前提条件で弾かれた場合、ストアは一切変更されない。
// 会話の束ねと通知のファンアウトは確定済みの遷移を巻き戻さない。
func (s *Service) Claim(ctx context.Context, requestID, claimantID string) (*model.Request, error) {
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("依頼の取得に失敗しました: %w", err)
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(requestID)
	}
	if req.PosterID == claimantID {
		return nil, model.NewForbiddenError()
	}

	verified, err := s.profile.HasVerifiedPhone(ctx, claimantID)
	if err != nil {
		return nil, fmt.Errorf("連絡先の確認に失敗しました: %w", err)
	}
	if !verified {
		return nil, model.NewMissingPhoneNumberError()
	}

	if !s.limiter.Allow(claimantID, ratelimit.ActionClaim) {
		return nil, model.NewRateLimitedError("引き受け")
	}

	target := req.Kind.ClaimedStatus()
	claimed, err := s.reqRepo.ClaimIfOpen(ctx, requestID, claimantID, target)
	if err != nil {
		return nil, fmt.Errorf("引き受けの登録に失敗しました: %w", err)
	}
	if !claimed {
		// 読み取りと書き込みの間に他者が引き受けた。衝突として報告する。
		s.metrics.RecordClaimConflict()
		return nil, model.NewAlreadyClaimedError()
	}
	s.metrics.RecordClaim(string(req.Kind))

	req.ClaimantID = &claimantID
	req.Status = target

	// ここから先は確定済みの遷移に対する追い掛け作業。失敗はログのみ。
	if _, err := s.binder.GetOrCreateForRequest(ctx, requestID, []string{req.PosterID, claimantID}); err != nil {
		s.logger.Error("引き受け後の会話作成に失敗しました",
			"request_id", requestID,
			"error", err)
	}

	body := fmt.Sprintf("依頼「%s」が引き受けられました", req.Title)
	if _, err := s.notifier.Notify(ctx, model.NotificationTypeClaim, []string{req.PosterID}, requestID, body); err != nil {
		s.logger.Error("引き受け通知のファンアウトに失敗しました",
			"request_id", requestID,
			"error", err)
	}

	s.publishRequestUpdate(ctx, req, claimantID)
	return req, nil
}

// Unclaim は引き受け者本人による取り下げを行う。依頼はopenへ戻る。
func (s *Service) Unclaim(ctx context.Context, requestID, claimantID string) (*model.Request, error) {
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("依頼の取得に失敗しました: %w", err)
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(requestID)
	}
	if req.Status == model.RequestStatusCompleted {
		return nil, model.NewRequestCompletedError()
	}

	// 引き受けと取り下げは同じクールダウンを共有する
	if !s.limiter.Allow(claimantID, ratelimit.ActionClaim) {
		return nil, model.NewRateLimitedError("取り下げ")
	}

	released, err := s.reqRepo.ReleaseIfClaimant(ctx, requestID, claimantID)
	if err != nil {
		return nil, fmt.Errorf("取り下げの登録に失敗しました: %w", err)
	}
	if !released {
		return nil, model.NewNotClaimantError()
	}

	req.ClaimantID = nil
	req.Status = model.RequestStatusOpen

	body := fmt.Sprintf("依頼「%s」の引き受けが取り下げられました", req.Title)
	if _, err := s.notifier.Notify(ctx, model.NotificationTypeRideUpdate, []string{req.PosterID}, requestID, body); err != nil {
		s.logger.Error("取り下げ通知のファンアウトに失敗しました",
			"request_id", requestID,
			"error", err)
	}

	s.publishRequestUpdate(ctx, req, claimantID)
	return req, nil
}

// Complete は依頼を完了へ遷移させる。投稿者または引き受け者のみ実行できる。
// 完了後、双方へレビュー促し通知を送る。
func (s *Service) Complete(ctx context.Context, requestID, actorID string) (*model.Request, error) {
	req, err := s.reqRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("依頼の取得に失敗しました: %w", err)
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(requestID)
	}
	if actorID != req.PosterID && (req.ClaimantID == nil || actorID != *req.ClaimantID) {
		return nil, model.NewForbiddenError()
	}
	if !req.Claimed() {
		if req.Status == model.RequestStatusCompleted {
			return nil, model.NewRequestCompletedError()
		}
		return nil, model.NewRequestNotClaimedError()
	}

	completed, err := s.reqRepo.CompleteIfClaimed(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("完了の登録に失敗しました: %w", err)
	}
	if !completed {
		// 読み取り後に他方が完了か取り下げを行った
		return nil, model.NewRequestNotClaimedError()
	}

	claimantID := *req.ClaimantID
	req.Status = model.RequestStatusCompleted

	body := fmt.Sprintf("依頼「%s」が完了しました。相手のレビューをお願いします", req.Title)
	if _, err := s.notifier.Notify(ctx, model.NotificationTypeReview, []string{req.PosterID, claimantID}, requestID, body); err != nil {
		s.logger.Error("レビュー促し通知のファンアウトに失敗しました",
			"request_id", requestID,
			"error", err)
	}

	s.publishRequestUpdate(ctx, req, actorID)
	return req, nil
}

// publishRequestUpdate は依頼の状態変化イベントを当事者双方へ配信する。失敗はログのみ。
func (s *Service) publishRequestUpdate(ctx context.Context, req *model.Request, actorID string) {
	recipients := []string{req.PosterID}
	if req.ClaimantID != nil && *req.ClaimantID != req.PosterID {
		recipients = append(recipients, *req.ClaimantID)
	} else if actorID != req.PosterID {
		recipients = append(recipients, actorID)
	}

	for _, userID := range recipients {
		err := s.stream.Publish(ctx, events.Event{
			Type:      events.EventTypeRequestUpdate,
			UserID:    userID,
			SubjectID: req.ID,
		})
		if err != nil {
			s.logger.Warn("依頼更新イベントの配信に失敗しました",
				"request_id", req.ID,
				"user_id", userID,
				"error", err)
		}
	}
}
