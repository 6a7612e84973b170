package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brcolf/naarscars/internal/model"
)

// --- モック定義 ---

// mockConversationService はConversationServiceInterfaceのモック実装。
type mockConversationService struct {
	startDirectFn  func(ctx context.Context, userID, otherUserID string) (*model.Conversation, error)
	getFn          func(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
	listFn         func(ctx context.Context, userID string) ([]*model.Conversation, error)
	sendMessageFn  func(ctx context.Context, conversationID, senderID, body string) (*model.Message, error)
	listMessagesFn func(ctx context.Context, conversationID, userID string, cursor time.Time, limit int) ([]*model.Message, error)
}

func (m *mockConversationService) StartDirect(ctx context.Context, userID, otherUserID string) (*model.Conversation, error) {
	if m.startDirectFn != nil {
		return m.startDirectFn(ctx, userID, otherUserID)
	}
	return nil, nil
}

func (m *mockConversationService) Get(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, conversationID, userID)
	}
	return nil, nil
}

func (m *mockConversationService) List(ctx context.Context, userID string) ([]*model.Conversation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockConversationService) SendMessage(ctx context.Context, conversationID, senderID, body string) (*model.Message, error) {
	if m.sendMessageFn != nil {
		return m.sendMessageFn(ctx, conversationID, senderID, body)
	}
	return nil, nil
}

func (m *mockConversationService) ListMessages(ctx context.Context, conversationID, userID string, cursor time.Time, limit int) ([]*model.Message, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, conversationID, userID, cursor, limit)
	}
	return nil, nil
}

// --- POST /api/conversations のテスト ---

func TestConversationHandler_StartDirect_Success(t *testing.T) {
	svc := &mockConversationService{
		startDirectFn: func(ctx context.Context, userID, otherUserID string) (*model.Conversation, error) {
			if userID != "user-1" || otherUserID != "user-2" {
				t.Errorf("participants = (%q, %q), want (user-1, user-2)", userID, otherUserID)
			}
			return &model.Conversation{
				ID:             "conv-1",
				ParticipantIDs: []string{"user-1", "user-2"},
			}, nil
		},
	}
	h := NewConversationHandler(svc)

	body, _ := json.Marshal(map[string]string{"user_id": "user-2"})
	req := httptest.NewRequest(http.MethodPost, "/api/conversations", bytes.NewReader(body))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.StartDirect(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["id"] != "conv-1" {
		t.Errorf("id = %v, want %q", resp["id"], "conv-1")
	}
}

// --- POST /api/conversations/:id/messages のテスト ---

func TestConversationHandler_SendMessage_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc := &mockConversationService{
		sendMessageFn: func(ctx context.Context, conversationID, senderID, body string) (*model.Message, error) {
			if conversationID != "conv-1" {
				t.Errorf("conversationID = %q, want %q", conversationID, "conv-1")
			}
			if body != "駅前で待ってます" {
				t.Errorf("body = %q, want %q", body, "駅前で待ってます")
			}
			return &model.Message{
				ID:             "msg-1",
				ConversationID: conversationID,
				SenderID:       senderID,
				Body:           body,
				CreatedAt:      now,
			}, nil
		},
	}
	h := NewConversationHandler(svc)

	body, _ := json.Marshal(map[string]string{"body": "駅前で待ってます"})
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages", bytes.NewReader(body))
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "conv-1")
	w := httptest.NewRecorder()

	h.SendMessage(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestConversationHandler_SendMessage_EmptyBody_Returns400(t *testing.T) {
	svc := &mockConversationService{
		sendMessageFn: func(ctx context.Context, conversationID, senderID, body string) (*model.Message, error) {
			return nil, model.NewEmptyMessageError()
		},
	}
	h := NewConversationHandler(svc)

	body, _ := json.Marshal(map[string]string{"body": "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages", bytes.NewReader(body))
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "conv-1")
	w := httptest.NewRecorder()

	h.SendMessage(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeEmptyMessage {
		t.Errorf("code = %q, want %q", got, model.ErrCodeEmptyMessage)
	}
}

// TestConversationHandler_Get_NonParticipant_Returns404 は非参加者に対して
// 会話の存在を漏らさず404が返ることを検証する。
func TestConversationHandler_Get_NonParticipant_Returns404(t *testing.T) {
	svc := &mockConversationService{
		getFn: func(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
			return nil, model.NewConversationNotFoundError(conversationID)
		},
	}
	h := NewConversationHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1", nil)
	req = withUserID(req, "outsider")
	req = withChiURLParam(req, "id", "conv-1")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// --- GET /api/conversations/:id/messages のテスト ---

func TestConversationHandler_ListMessages_ParsesCursor(t *testing.T) {
	cursorTime := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var gotCursor time.Time
	svc := &mockConversationService{
		listMessagesFn: func(ctx context.Context, conversationID, userID string, cursor time.Time, limit int) ([]*model.Message, error) {
			gotCursor = cursor
			return nil, nil
		},
	}
	h := NewConversationHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/messages?before="+cursorTime.Format(time.RFC3339), nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "conv-1")
	w := httptest.NewRecorder()

	h.ListMessages(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !gotCursor.Equal(cursorTime) {
		t.Errorf("cursor = %v, want %v", gotCursor, cursorTime)
	}
}

func TestConversationHandler_ListMessages_InvalidCursor_Returns400(t *testing.T) {
	h := NewConversationHandler(&mockConversationService{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/messages?before=yesterday", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "conv-1")
	w := httptest.NewRecorder()

	h.ListMessages(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}
