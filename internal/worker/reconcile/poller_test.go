package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brcolf/naarscars/internal/model"
)

// --- モック定義 ---

type mockReconciler struct {
	mu          sync.Mutex
	reconciled  []string
	reconcileFn func(ctx context.Context, userID string) (model.Counts, error)
}

func (m *mockReconciler) Reconcile(ctx context.Context, userID string) (model.Counts, error) {
	m.mu.Lock()
	m.reconciled = append(m.reconciled, userID)
	m.mu.Unlock()
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx, userID)
	}
	return model.Counts{}, nil
}

func (m *mockReconciler) reconciledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reconciled)
}

type mockPresence struct {
	liveFn func(ctx context.Context) ([]string, error)
}

func (m *mockPresence) LiveUserIDs(ctx context.Context) ([]string, error) {
	if m.liveFn != nil {
		return m.liveFn(ctx)
	}
	return nil, nil
}

type mockSessionLister struct {
	listFn func(ctx context.Context) ([]string, error)
}

func (m *mockSessionLister) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- テスト ---

// TestRunLive_ReconcilesLiveUsers は接続中ユーザーのみが再集計されることを検証する。
func TestRunLive_ReconcilesLiveUsers(t *testing.T) {
	reconciler := &mockReconciler{}
	presence := &mockPresence{
		liveFn: func(ctx context.Context) ([]string, error) {
			return []string{"user-1", "user-2"}, nil
		},
	}

	p := NewPoller(reconciler, presence, &mockSessionLister{}, discardLogger(), 4)

	if err := p.RunLive(context.Background()); err != nil {
		t.Fatalf("RunLive returned error: %v", err)
	}

	if got := reconciler.reconciledCount(); got != 2 {
		t.Errorf("reconciled count = %d, want 2", got)
	}
}

// TestRunIdle_ReconcilesSessionUsers はセッション保有ユーザー全員が
// 再集計されることを検証する。
func TestRunIdle_ReconcilesSessionUsers(t *testing.T) {
	reconciler := &mockReconciler{}
	sessions := &mockSessionLister{
		listFn: func(ctx context.Context) ([]string, error) {
			return []string{"user-1", "user-2", "user-3"}, nil
		},
	}

	p := NewPoller(reconciler, &mockPresence{}, sessions, discardLogger(), 4)

	if err := p.RunIdle(context.Background()); err != nil {
		t.Fatalf("RunIdle returned error: %v", err)
	}

	if got := reconciler.reconciledCount(); got != 3 {
		t.Errorf("reconciled count = %d, want 3", got)
	}
}

// TestRunLive_PresenceError_ReturnsError は接続中ユーザーの列挙失敗が
// エラーとして返ることを検証する。
func TestRunLive_PresenceError_ReturnsError(t *testing.T) {
	presence := &mockPresence{
		liveFn: func(ctx context.Context) ([]string, error) {
			return nil, errors.New("redis connection refused")
		},
	}

	p := NewPoller(&mockReconciler{}, presence, &mockSessionLister{}, discardLogger(), 4)

	if err := p.RunLive(context.Background()); err == nil {
		t.Error("expected error when presence lookup fails")
	}
}

// TestReconcileAll_ToleratesIndividualFailures は個別ユーザーの集計失敗が
// 他のユーザーの集計を止めないことを検証する。
func TestReconcileAll_ToleratesIndividualFailures(t *testing.T) {
	reconciler := &mockReconciler{
		reconcileFn: func(ctx context.Context, userID string) (model.Counts, error) {
			if userID == "user-2" {
				return model.Counts{}, errors.New("count query failed")
			}
			return model.Counts{}, nil
		},
	}
	presence := &mockPresence{
		liveFn: func(ctx context.Context) ([]string, error) {
			return []string{"user-1", "user-2", "user-3"}, nil
		},
	}

	p := NewPoller(reconciler, presence, &mockSessionLister{}, discardLogger(), 2)

	if err := p.RunLive(context.Background()); err != nil {
		t.Fatalf("RunLive returned error: %v", err)
	}

	// 失敗したuser-2も含め全員に対して試行される
	if got := reconciler.reconciledCount(); got != 3 {
		t.Errorf("reconcile attempts = %d, want 3", got)
	}
}

// TestNewPoller_DefaultConcurrency は並列数0以下の指定がデフォルトに
// フォールバックすることを検証する。
func TestNewPoller_DefaultConcurrency(t *testing.T) {
	p := NewPoller(&mockReconciler{}, &mockPresence{}, &mockSessionLister{}, discardLogger(), 0)
	if p.maxConcurrency != 10 {
		t.Errorf("maxConcurrency = %d, want 10", p.maxConcurrency)
	}
}

// TestPoller_ManyUsers_BoundedConcurrency は多数ユーザーでも全員が
// 再集計されることを検証する。
func TestPoller_ManyUsers_BoundedConcurrency(t *testing.T) {
	userIDs := make([]string, 100)
	for i := range userIDs {
		userIDs[i] = "user-" + string(rune('a'+i%26))
	}

	reconciler := &mockReconciler{}
	sessions := &mockSessionLister{
		listFn: func(ctx context.Context) ([]string, error) {
			return userIDs, nil
		},
	}

	p := NewPoller(reconciler, &mockPresence{}, sessions, discardLogger(), 5)

	if err := p.RunIdle(context.Background()); err != nil {
		t.Fatalf("RunIdle returned error: %v", err)
	}
	if got := reconciler.reconciledCount(); got != 100 {
		t.Errorf("reconciled count = %d, want 100", got)
	}
}
