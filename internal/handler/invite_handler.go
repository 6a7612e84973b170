package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/brcolf/naarscars/internal/middleware"
	"github.com/brcolf/naarscars/internal/model"
)

// InviteServiceInterface は招待コードハンドラーが必要とするサービスインターフェース。
type InviteServiceInterface interface {
	Generate(ctx context.Context, creatorID string) (*model.InviteCode, error)
	ListMine(ctx context.Context, userID string) ([]*model.InviteCode, error)
}

// InviteHandler は招待コードのHTTPハンドラー。
type InviteHandler struct {
	service InviteServiceInterface
}

// NewInviteHandler はInviteHandlerを生成する。
func NewInviteHandler(service InviteServiceInterface) *InviteHandler {
	return &InviteHandler{service: service}
}

// inviteResponse は招待コードのAPIレスポンス。
type inviteResponse struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	UsedBy    *string    `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Generate は新しい招待コードを発行する。
// POST /api/invites
func (h *InviteHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	invite, err := h.service.Generate(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInviteResponse(invite))
}

// ListMine は自分が発行した招待コードの一覧を返す。
// GET /api/invites
func (h *InviteHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	invites, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]inviteResponse, 0, len(invites))
	for _, invite := range invites {
		out = append(out, toInviteResponse(invite))
	}
	writeJSON(w, http.StatusOK, out)
}

func toInviteResponse(invite *model.InviteCode) inviteResponse {
	return inviteResponse{
		ID:        invite.ID,
		Code:      invite.Code,
		UsedBy:    invite.UsedBy,
		UsedAt:    invite.UsedAt,
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
	}
}
