package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/repository"
)

// mockConvRepo は関数フィールドで振る舞いを差し替えるモック。
type mockConvRepo struct {
	findByIDFunc             func(ctx context.Context, id string) (*model.Conversation, error)
	findBySubjectRequestFunc func(ctx context.Context, requestID string) (*model.Conversation, error)
	findByParticipantKeyFunc func(ctx context.Context, key string) (*model.Conversation, error)
	createFunc               func(ctx context.Context, conv *model.Conversation) error
	listByUserFunc           func(ctx context.Context, userID string) ([]*model.Conversation, error)
}

func (m *mockConvRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockConvRepo) FindBySubjectRequest(ctx context.Context, requestID string) (*model.Conversation, error) {
	if m.findBySubjectRequestFunc != nil {
		return m.findBySubjectRequestFunc(ctx, requestID)
	}
	return nil, nil
}

func (m *mockConvRepo) FindByParticipantKey(ctx context.Context, key string) (*model.Conversation, error) {
	if m.findByParticipantKeyFunc != nil {
		return m.findByParticipantKeyFunc(ctx, key)
	}
	return nil, nil
}

func (m *mockConvRepo) Create(ctx context.Context, conv *model.Conversation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, conv)
	}
	return nil
}

func (m *mockConvRepo) ListByUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID)
	}
	return nil, nil
}

// TestGetOrCreateForRequest_ReturnsExisting は既存会話があれば作成しないことを検証する。
func TestGetOrCreateForRequest_ReturnsExisting(t *testing.T) {
	existing := &model.Conversation{ID: "conv-1"}
	repo := &mockConvRepo{
		findBySubjectRequestFunc: func(ctx context.Context, requestID string) (*model.Conversation, error) {
			return existing, nil
		},
		createFunc: func(ctx context.Context, conv *model.Conversation) error {
			t.Error("既存会話があるのにCreateが呼ばれた")
			return nil
		},
	}
	binder := NewBinder(repo)

	got, err := binder.GetOrCreateForRequest(context.Background(), "req-1", []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetOrCreateForRequest() error = %v", err)
	}
	if got.ID != "conv-1" {
		t.Errorf("ID = %s, want conv-1", got.ID)
	}
}

// TestGetOrCreateForRequest_CreatesNew は会話がなければ作成することを検証する。
func TestGetOrCreateForRequest_CreatesNew(t *testing.T) {
	var created *model.Conversation
	repo := &mockConvRepo{
		createFunc: func(ctx context.Context, conv *model.Conversation) error {
			created = conv
			return nil
		},
	}
	binder := NewBinder(repo)

	got, err := binder.GetOrCreateForRequest(context.Background(), "req-1", []string{"b", "a"})
	if err != nil {
		t.Fatalf("GetOrCreateForRequest() error = %v", err)
	}
	if created == nil {
		t.Fatal("Createが呼ばれなかった")
	}
	if got.SubjectRequestID == nil || *got.SubjectRequestID != "req-1" {
		t.Errorf("SubjectRequestID = %v, want req-1", got.SubjectRequestID)
	}
	if got.ParticipantKey != model.ParticipantKeyFor([]string{"a", "b"}) {
		t.Errorf("参加者キーが正規化されていない: %s", got.ParticipantKey)
	}
	if got.ID == "" {
		t.Error("IDが採番されていない")
	}
	if created.CreatedAt.IsZero() {
		t.Error("CreatedAtがゼロ値のまま保存された")
	}
}

// TestGetOrCreateForRequest_DuplicateRaceFallsBackToRequery は
// 同時作成レースの敗者が勝者の会話を再クエリして返すことを検証する。
func TestGetOrCreateForRequest_DuplicateRaceFallsBackToRequery(t *testing.T) {
	winner := &model.Conversation{ID: "conv-winner"}
	lookups := 0
	repo := &mockConvRepo{
		findBySubjectRequestFunc: func(ctx context.Context, requestID string) (*model.Conversation, error) {
			lookups++
			if lookups == 1 {
				// 最初の検索時点では勝者の挿入がまだ見えていない
				return nil, nil
			}
			return winner, nil
		},
		createFunc: func(ctx context.Context, conv *model.Conversation) error {
			return repository.ErrDuplicate
		},
	}
	binder := NewBinder(repo)

	got, err := binder.GetOrCreateForRequest(context.Background(), "req-1", []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetOrCreateForRequest() error = %v", err)
	}
	if got.ID != "conv-winner" {
		t.Errorf("ID = %s, want conv-winner", got.ID)
	}
	if lookups != 2 {
		t.Errorf("検索回数 = %d, want 2", lookups)
	}
}

// TestGetOrCreateDirect_DuplicateRaceFallsBackToRequery はダイレクト会話でも
// 敗者側の再クエリフォールバックが働くことを検証する。
func TestGetOrCreateDirect_DuplicateRaceFallsBackToRequery(t *testing.T) {
	winner := &model.Conversation{ID: "conv-winner", ParticipantKey: model.ParticipantKeyFor([]string{"a", "b"})}
	lookups := 0
	repo := &mockConvRepo{
		findByParticipantKeyFunc: func(ctx context.Context, key string) (*model.Conversation, error) {
			lookups++
			if lookups == 1 {
				return nil, nil
			}
			return winner, nil
		},
		createFunc: func(ctx context.Context, conv *model.Conversation) error {
			return repository.ErrDuplicate
		},
	}
	binder := NewBinder(repo)

	got, err := binder.GetOrCreateDirect(context.Background(), []string{"b", "a"})
	if err != nil {
		t.Fatalf("GetOrCreateDirect() error = %v", err)
	}
	if got.ID != "conv-winner" {
		t.Errorf("ID = %s, want conv-winner", got.ID)
	}
}

// TestGetOrCreate_RequeryMissAfterDuplicate は重複後の再クエリでも見つからない
// 場合にエラーが返ることを検証する。
func TestGetOrCreate_RequeryMissAfterDuplicate(t *testing.T) {
	repo := &mockConvRepo{
		createFunc: func(ctx context.Context, conv *model.Conversation) error {
			return repository.ErrDuplicate
		},
	}
	binder := NewBinder(repo)

	if _, err := binder.GetOrCreateDirect(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("再クエリ不一致でエラーが返らなかった")
	}
}

// TestGetOrCreate_CreateFailurePropagates は一意制約以外の作成エラーが伝播することを検証する。
func TestGetOrCreate_CreateFailurePropagates(t *testing.T) {
	repo := &mockConvRepo{
		createFunc: func(ctx context.Context, conv *model.Conversation) error {
			return fmt.Errorf("db down")
		},
	}
	binder := NewBinder(repo)

	if _, err := binder.GetOrCreateForRequest(context.Background(), "req-1", []string{"a", "b"}); err == nil {
		t.Fatal("作成失敗でエラーが返らなかった")
	}
}
