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

// ReviewServiceInterface はレビューハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	Submit(ctx context.Context, requestID, reviewerID string, rating int, comment string) (*model.Review, error)
	Skip(ctx context.Context, requestID, userID string) error
	ListForUser(ctx context.Context, revieweeID string, limit int) ([]*model.Review, error)
}

// ReviewHandler はレビューのHTTPハンドラー。
type ReviewHandler struct {
	service ReviewServiceInterface
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(service ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// submitReviewRequest はレビュー投稿リクエストのボディ。
type submitReviewRequest struct {
	RequestID string `json:"request_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// reviewResponse はレビューのAPIレスポンス。
type reviewResponse struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	ReviewerID string    `json:"reviewer_id"`
	RevieweeID string    `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Submit は完了済み依頼の相手へのレビュー投稿を処理する。
// POST /api/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	review, err := h.service.Submit(r.Context(), req.RequestID, userID, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReviewResponse(review))
}

// Skip はレビューのスキップを処理する。
// POST /api/requests/:id/review/skip
func (h *ReviewHandler) Skip(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Skip(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListForUser は指定ユーザーが受けたレビューの一覧を返す。
// GET /api/users/:id/reviews
func (h *ReviewHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListForUser(r.Context(), chi.URLParam(r, "id"), parseLimit(r, defaultListLimit))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		out = append(out, toReviewResponse(review))
	}
	writeJSON(w, http.StatusOK, out)
}

func toReviewResponse(review *model.Review) reviewResponse {
	return reviewResponse{
		ID:         review.ID,
		RequestID:  review.RequestID,
		ReviewerID: review.ReviewerID,
		RevieweeID: review.RevieweeID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  review.CreatedAt,
	}
}
