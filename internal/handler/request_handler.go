package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brcolf/naarscars/internal/middleware"
	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/request"
)

// defaultListLimit は一覧系エンドポイントのデフォルト件数。
const defaultListLimit = 50

// RequestServiceInterface は依頼ハンドラーが必要とするサービスインターフェース。
type RequestServiceInterface interface {
	Create(ctx context.Context, posterID string, input request.CreateInput) (*model.Request, error)
	Get(ctx context.Context, requestID string) (*model.Request, error)
	ListOpen(ctx context.Context, limit int) ([]*model.Request, error)
	ListPosted(ctx context.Context, userID string, limit int) ([]*model.Request, error)
	ListClaimed(ctx context.Context, userID string, limit int) ([]*model.Request, error)
	Claim(ctx context.Context, requestID, claimantID string) (*model.Request, error)
	Unclaim(ctx context.Context, requestID, claimantID string) (*model.Request, error)
	Complete(ctx context.Context, requestID, actorID string) (*model.Request, error)
}

// RequestHandler は依頼管理のHTTPハンドラー。
type RequestHandler struct {
	service RequestServiceInterface
}

// NewRequestHandler はRequestHandlerを生成する。
func NewRequestHandler(service RequestServiceInterface) *RequestHandler {
	return &RequestHandler{service: service}
}

// createRequestBody は依頼作成リクエストのボディ。
type createRequestBody struct {
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Origin      string     `json:"origin,omitempty"`
	Destination string     `json:"destination,omitempty"`
	NeededAt    *time.Time `json:"needed_at,omitempty"`
}

// requestResponse は依頼のAPIレスポンス。
type requestResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	PosterID    string     `json:"poster_id"`
	ClaimantID  *string    `json:"claimant_id,omitempty"`
	Status      string     `json:"status"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Origin      string     `json:"origin,omitempty"`
	Destination string     `json:"destination,omitempty"`
	NeededAt    *time.Time `json:"needed_at,omitempty"`
	Reviewed    bool       `json:"reviewed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Create は依頼の投稿を処理する。
// POST /api/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	req, err := h.service.Create(r.Context(), userID, request.CreateInput{
		Kind:        body.Kind,
		Title:       body.Title,
		Description: body.Description,
		Origin:      body.Origin,
		Destination: body.Destination,
		NeededAt:    body.NeededAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestResponse(req))
}

// Get は依頼詳細を返す。
// GET /api/requests/:id
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	req, err := h.service.Get(r.Context(), requestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// List は依頼一覧を返す。
// filterクエリパラメータで open（デフォルト）/ posted / claimed を切り替える。
// GET /api/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit := parseLimit(r, defaultListLimit)

	var reqs []*model.Request
	switch r.URL.Query().Get("filter") {
	case "", "open":
		reqs, err = h.service.ListOpen(r.Context(), limit)
	case "posted":
		reqs, err = h.service.ListPosted(r.Context(), userID, limit)
	case "claimed":
		reqs, err = h.service.ListClaimed(r.Context(), userID, limit)
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "filterには open / posted / claimed のいずれかを指定してください。",
			Category: "validation",
			Action:   "クエリパラメータを確認してください。",
		})
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestListResponse(reqs))
}

// Claim は依頼の引き受けを処理する。
// POST /api/requests/:id/claim
func (h *RequestHandler) Claim(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	req, err := h.service.Claim(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// Unclaim は引き受けの取り下げを処理する。
// POST /api/requests/:id/unclaim
func (h *RequestHandler) Unclaim(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	req, err := h.service.Unclaim(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// Complete は依頼の完了を処理する。
// POST /api/requests/:id/complete
func (h *RequestHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	req, err := h.service.Complete(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// --- ヘルパー関数 ---

func toRequestResponse(req *model.Request) requestResponse {
	return requestResponse{
		ID:          req.ID,
		Kind:        string(req.Kind),
		PosterID:    req.PosterID,
		ClaimantID:  req.ClaimantID,
		Status:      string(req.Status),
		Title:       req.Title,
		Description: req.Description,
		Origin:      req.Origin,
		Destination: req.Destination,
		NeededAt:    req.NeededAt,
		Reviewed:    req.Reviewed,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func toRequestListResponse(reqs []*model.Request) []requestResponse {
	out := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestResponse(req))
	}
	return out
}

// parseLimit はlimitクエリパラメータを解析する。不正値はデフォルトにフォールバックする。
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 200 {
		return def
	}
	return limit
}
