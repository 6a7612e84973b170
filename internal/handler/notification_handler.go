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

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	ListBell(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	ListMessages(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string, includeMessages bool) error
	Announce(ctx context.Context, recipientIDs []string, body string, pinned bool) ([]*model.Notification, error)
	SetPinned(ctx context.Context, notificationID string, pinned bool) error
}

// CountsProvider は未読バッジ数の取得インターフェース。
type CountsProvider interface {
	Counts(ctx context.Context, userID string) (model.Counts, error)
}

// UserLister はお知らせのファンアウト対象となる全ユーザーIDの列挙インターフェース。
type UserLister interface {
	ListAllIDs(ctx context.Context) ([]string, error)
}

// NotificationHandler は通知とバッジのHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
	counts  CountsProvider
	users   UserLister
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface, counts CountsProvider, users UserLister) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		counts:  counts,
		users:   users,
	}
}

// notificationResponse は通知のAPIレスポンス。
type notificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SubjectID string    `json:"subject_id"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
}

// countsResponse は未読バッジ数のAPIレスポンス。
// メッセージとベル通知の未読数は常に分離して返す。
type countsResponse struct {
	UnreadMessages      int `json:"unread_messages"`
	UnreadNotifications int `json:"unread_notifications"`
}

// announceRequest はお知らせ配信リクエストのボディ。
type announceRequest struct {
	Body   string `json:"body"`
	Pinned bool   `json:"pinned"`
}

// markAllReadRequest は一括既読化リクエストのボディ。
type markAllReadRequest struct {
	IncludeMessages bool `json:"include_messages"`
}

// setPinnedRequest はピン留め変更リクエストのボディ。
type setPinnedRequest struct {
	Pinned bool `json:"pinned"`
}

// ListBell はベルフィード（メッセージ以外の通知）を返す。
// GET /api/notifications
func (h *NotificationHandler) ListBell(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	notifications, err := h.service.ListBell(r.Context(), userID, parseLimit(r, defaultListLimit))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNotificationListResponse(notifications))
}

// ListMessages はメッセージ着信通知の一覧を返す。
// GET /api/notifications/messages
func (h *NotificationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	notifications, err := h.service.ListMessages(r.Context(), userID, parseLimit(r, defaultListLimit))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNotificationListResponse(notifications))
}

// Counts は未読バッジ数を返す。
// GET /api/notifications/counts
func (h *NotificationHandler) Counts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	counts, err := h.counts.Counts(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, countsResponse{
		UnreadMessages:      counts.UnreadMessages,
		UnreadNotifications: counts.UnreadNotifications,
	})
}

// MarkRead は通知を既読にする。
// POST /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead は通知を一括で既読にする。
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req markAllReadRequest
	// ボディ省略時はベル通知のみ既読化する
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = markAllReadRequest{}
	}

	if err := h.service.MarkAllRead(r.Context(), userID, req.IncludeMessages); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Announce は全メンバーへのお知らせ配信を処理する。管理者専用。
// POST /api/notifications/announcements
func (h *NotificationHandler) Announce(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsAdminFromContext(r.Context()) {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	recipientIDs, err := h.users.ListAllIDs(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	notifications, err := h.service.Announce(r.Context(), recipientIDs, req.Body, req.Pinned)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"recipients": len(notifications)})
}

// SetPinned はお知らせのピン留め状態を変更する。管理者専用。
// PUT /api/notifications/:id/pin
func (h *NotificationHandler) SetPinned(w http.ResponseWriter, r *http.Request) {
	if !middleware.IsAdminFromContext(r.Context()) {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	var req setPinnedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.SetPinned(r.Context(), chi.URLParam(r, "id"), req.Pinned); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

func toNotificationListResponse(notifications []*model.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			SubjectID: n.SubjectID,
			Body:      n.Body,
			Read:      n.Read,
			Pinned:    n.Pinned,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
