package review

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/repository"
	"github.com/brcolf/naarscars/internal/security"
)

// mockReviewRepo は関数フィールドで振る舞いを差し替えるモック。
type mockReviewRepo struct {
	createFunc func(ctx context.Context, review *model.Review) error
}

func (m *mockReviewRepo) Create(ctx context.Context, review *model.Review) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, review)
	}
	return nil
}

func (m *mockReviewRepo) FindByRequestAndReviewer(ctx context.Context, requestID, reviewerID string) (*model.Review, error) {
	return nil, nil
}

func (m *mockReviewRepo) ListByReviewee(ctx context.Context, revieweeID string, limit int) ([]*model.Review, error) {
	return nil, nil
}

// mockReqRepo は完了済み依頼を返すリクエストリポジトリモック。
type mockReqRepo struct {
	findByIDFunc          func(ctx context.Context, id string) (*model.Request, error)
	updateReviewStateFunc func(ctx context.Context, requestID string, reviewed, skipped bool, skippedAt *time.Time) error
}

func (m *mockReqRepo) FindByID(ctx context.Context, id string) (*model.Request, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockReqRepo) Create(ctx context.Context, req *model.Request) error { return nil }

func (m *mockReqRepo) ListOpen(ctx context.Context, limit int) ([]*model.Request, error) {
	return nil, nil
}

func (m *mockReqRepo) ListByPoster(ctx context.Context, posterID string, limit int) ([]*model.Request, error) {
	return nil, nil
}

func (m *mockReqRepo) ListByClaimant(ctx context.Context, claimantID string, limit int) ([]*model.Request, error) {
	return nil, nil
}

func (m *mockReqRepo) ClaimIfOpen(ctx context.Context, requestID, claimantID string, target model.RequestStatus) (bool, error) {
	return false, nil
}

func (m *mockReqRepo) ReleaseIfClaimant(ctx context.Context, requestID, claimantID string) (bool, error) {
	return false, nil
}

func (m *mockReqRepo) CompleteIfClaimed(ctx context.Context, requestID string) (bool, error) {
	return false, nil
}

func (m *mockReqRepo) UpdateReviewState(ctx context.Context, requestID string, reviewed, skipped bool, skippedAt *time.Time) error {
	if m.updateReviewStateFunc != nil {
		return m.updateReviewStateFunc(ctx, requestID, reviewed, skipped, skippedAt)
	}
	return nil
}

func completedRequest() *model.Request {
	claimant := "driver"
	return &model.Request{
		ID:         "req-1",
		Kind:       model.RequestKindRide,
		PosterID:   "poster",
		ClaimantID: &claimant,
		Status:     model.RequestStatusCompleted,
		Title:      "駅まで送って",
	}
}

func newTestService(reviewRepo *mockReviewRepo, reqRepo *mockReqRepo) *Service {
	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	return NewService(reviewRepo, reqRepo, security.NewContentSanitizer(), logger)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返らなかった: %v", err)
	}
	if apiErr.Code != code {
		t.Fatalf("Code = %s, want %s", apiErr.Code, code)
	}
}

// TestSubmit_PosterReviewsClaimant は投稿者のレビュー対象が引き受け者であることを検証する。
func TestSubmit_PosterReviewsClaimant(t *testing.T) {
	var saved *model.Review
	reviewRepo := &mockReviewRepo{
		createFunc: func(ctx context.Context, review *model.Review) error {
			saved = review
			return nil
		},
	}
	var markedReviewed bool
	reqRepo := &mockReqRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Request, error) {
			return completedRequest(), nil
		},
		updateReviewStateFunc: func(ctx context.Context, requestID string, reviewed, skipped bool, skippedAt *time.Time) error {
			markedReviewed = reviewed
			return nil
		},
	}
	svc := newTestService(reviewRepo, reqRepo)

	got, err := svc.Submit(context.Background(), "req-1", "poster", 5, "<b>丁寧でした</b>")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if saved == nil {
		t.Fatal("レビューが保存されなかった")
	}
	if got.RevieweeID != "driver" {
		t.Errorf("RevieweeID = %s, want driver", got.RevieweeID)
	}
	if got.Comment != "丁寧でした" {
		t.Errorf("Comment = %q, HTMLが除去されていない", got.Comment)
	}
	if !markedReviewed {
		t.Error("レビュー追跡フィールドが更新されていない")
	}
	if saved.CreatedAt.IsZero() {
		t.Error("CreatedAtがゼロ値のまま保存された")
	}
}

// TestSubmit_ClaimantReviewsPoster は引き受け者のレビュー対象が投稿者であることを検証する。
func TestSubmit_ClaimantReviewsPoster(t *testing.T) {
	reqRepo := &mockReqRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Request, error) {
			return completedRequest(), nil
		},
	}
	svc := newTestService(&mockReviewRepo{}, reqRepo)

	got, err := svc.Submit(context.Background(), "req-1", "driver", 4, "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got.RevieweeID != "poster" {
		t.Errorf("RevieweeID = %s, want poster", got.RevieweeID)
	}
}

// TestSubmit_NotCompleted は未完了の依頼へのレビューが拒否されることを検証する。
func TestSubmit_NotCompleted(t *testing.T) {
	reqRepo := &mockReqRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Request, error) {
			req := completedRequest()
			req.Status = model.RequestStatusConfirmed
			return req, nil
		},
	}
	svc := newTestService(&mockReviewRepo{}, reqRepo)

	_, err := svc.Submit(context.Background(), "req-1", "poster", 5, "")
	assertAPIError(t, err, model.ErrCodeRequestNotCompleted)
}

// TestSubmit_Forbidden は当事者以外のレビューが拒否されることを検証する。
func TestSubmit_Forbidden(t *testing.T) {
	reqRepo := &mockReqRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Request, error) {
			return completedRequest(), nil
		},
	}
	svc := newTestService(&mockReviewRepo{}, reqRepo)

	_, err := svc.Submit(context.Background(), "req-1", "mallory", 5, "")
	assertAPIError(t, err, model.ErrCodeForbidden)
}

// TestSubmit_InvalidRating は範囲外の評価が拒否されることを検証する。
func TestSubmit_InvalidRating(t *testing.T) {
	svc := newTestService(&mockReviewRepo{}, &mockReqRepo{})

	for _, rating := range []int{0, -1, 6} {
		_, err := svc.Submit(context.Background(), "req-1", "poster", rating, "")
		assertAPIError(t, err, model.ErrCodeInvalidRating)
	}
}

// TestSubmit_Duplicate は同一依頼への二重レビューが拒否されることを検証する。
func TestSubmit_Duplicate(t *testing.T) {
	reviewRepo := &mockReviewRepo{
		createFunc: func(ctx context.Context, review *model.Review) error {
			return repository.ErrDuplicate
		},
	}
	reqRepo := &mockReqRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Request, error) {
			return completedRequest(), nil
		},
	}
	svc := newTestService(reviewRepo, reqRepo)

	_, err := svc.Submit(context.Background(), "req-1", "poster", 5, "")
	assertAPIError(t, err, model.ErrCodeAlreadyReviewed)
}

// TestSkip_RecordsSkippedAt は見送りが時刻付きで記録されることを検証する。
func TestSkip_RecordsSkippedAt(t *testing.T) {
	var gotSkipped bool
	var gotSkippedAt *time.Time
	reqRepo := &mockReqRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Request, error) {
			return completedRequest(), nil
		},
		updateReviewStateFunc: func(ctx context.Context, requestID string, reviewed, skipped bool, skippedAt *time.Time) error {
			gotSkipped = skipped
			gotSkippedAt = skippedAt
			return nil
		},
	}
	svc := newTestService(&mockReviewRepo{}, reqRepo)

	if err := svc.Skip(context.Background(), "req-1", "poster"); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if !gotSkipped {
		t.Error("skippedが記録されていない")
	}
	if gotSkippedAt == nil {
		t.Error("skippedAtが記録されていない")
	}
}

// TestSkip_NotCompleted は未完了の依頼の見送りが拒否されることを検証する。
func TestSkip_NotCompleted(t *testing.T) {
	reqRepo := &mockReqRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Request, error) {
			req := completedRequest()
			req.Status = model.RequestStatusPending
			return req, nil
		},
	}
	svc := newTestService(&mockReviewRepo{}, reqRepo)

	err := svc.Skip(context.Background(), "req-1", "poster")
	assertAPIError(t, err, model.ErrCodeRequestNotCompleted)
}
