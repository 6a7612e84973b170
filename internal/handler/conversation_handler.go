package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brcolf/naarscars/internal/middleware"
	"github.com/brcolf/naarscars/internal/model"
)

// ConversationServiceInterface は会話ハンドラーが必要とするサービスインターフェース。
type ConversationServiceInterface interface {
	StartDirect(ctx context.Context, userID, otherUserID string) (*model.Conversation, error)
	Get(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
	List(ctx context.Context, userID string) ([]*model.Conversation, error)
	SendMessage(ctx context.Context, conversationID, senderID, body string) (*model.Message, error)
	ListMessages(ctx context.Context, conversationID, userID string, cursor time.Time, limit int) ([]*model.Message, error)
}

// ConversationHandler は会話とメッセージのHTTPハンドラー。
type ConversationHandler struct {
	service ConversationServiceInterface
}

// NewConversationHandler はConversationHandlerを生成する。
func NewConversationHandler(service ConversationServiceInterface) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// startDirectRequest はダイレクト会話開始リクエストのボディ。
type startDirectRequest struct {
	UserID string `json:"user_id"`
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	Body string `json:"body"`
}

// conversationResponse は会話のAPIレスポンス。
type conversationResponse struct {
	ID               string    `json:"id"`
	SubjectRequestID *string   `json:"subject_request_id,omitempty"`
	ParticipantIDs   []string  `json:"participant_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// StartDirect は他のメンバーとのダイレクト会話を開始する。
// 既存の会話があればそれを返す。
// POST /api/conversations
func (h *ConversationHandler) StartDirect(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req startDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	conv, err := h.service.StartDirect(r.Context(), userID, req.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

// List は自分が参加する会話の一覧を返す。
// GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	convs, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		out = append(out, toConversationResponse(conv))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get は会話の詳細を返す。非参加者には404を返す。
// GET /api/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	conv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

// SendMessage は会話へのメッセージ送信を処理する。
// POST /api/conversations/:id/messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	msg, err := h.service.SendMessage(r.Context(), chi.URLParam(r, "id"), userID, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// ListMessages は会話のメッセージ一覧を返す。
// beforeクエリパラメータ（RFC 3339）でカーソルページングできる。
// GET /api/conversations/:id/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	cursor := time.Time{}
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "beforeはRFC 3339形式で指定してください。",
				Category: "validation",
				Action:   "クエリパラメータを確認してください。",
			})
			return
		}
		cursor = parsed
	}

	limit := parseLimit(r, defaultListLimit)

	msgs, err := h.service.ListMessages(r.Context(), chi.URLParam(r, "id"), userID, cursor, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toMessageResponse(msg))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- ヘルパー関数 ---

func toConversationResponse(conv *model.Conversation) conversationResponse {
	return conversationResponse{
		ID:               conv.ID,
		SubjectRequestID: conv.SubjectRequestID,
		ParticipantIDs:   conv.ParticipantIDs,
		CreatedAt:        conv.CreatedAt,
	}
}

func toMessageResponse(msg *model.Message) messageResponse {
	return messageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
	}
}
