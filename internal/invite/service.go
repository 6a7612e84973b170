// Package invite は招待コードの発行と消費のドメインロジックを提供する。
package invite

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/ratelimit"
	"github.com/brcolf/naarscars/internal/repository"
)

// codeAlphabet は招待コードに使う文字集合。紛らわしい文字（0/O、1/I/L）を除く。
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// codeLength は招待コードの文字数。
const codeLength = 8

// Limiter は連打抑止のインターフェース。
type Limiter interface {
	Allow(actorID string, action ratelimit.Action) bool
}

// Service は招待コードのサービス層。
type Service struct {
	inviteRepo repository.InviteRepository
	limiter    Limiter
	ttl        time.Duration
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(inviteRepo repository.InviteRepository, limiter Limiter, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		inviteRepo: inviteRepo,
		limiter:    limiter,
		ttl:        ttl,
		logger:     logger,
	}
}

// Generate は新しい招待コードを発行する。
func (s *Service) Generate(ctx context.Context, creatorID string) (*model.InviteCode, error) {
	if !s.limiter.Allow(creatorID, ratelimit.ActionInvite) {
		return nil, model.NewRateLimitedError("招待コードの発行")
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("招待コードの生成に失敗しました: %w", err)
	}

	now := time.Now().UTC()
	invite := &model.InviteCode{
		ID:        uuid.New().String(),
		Code:      code,
		CreatedBy: creatorID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, fmt.Errorf("招待コードの保存に失敗しました: %w", err)
	}
	return invite, nil
}

// Redeem は招待コードを消費する。未使用かつ期限内のコードのみ、
// 条件付きUPDATEで高々1回消費できる。
func (s *Service) Redeem(ctx context.Context, code, userID string) error {
	redeemed, err := s.inviteRepo.RedeemIfUnused(ctx, code, userID)
	if err != nil {
		return fmt.Errorf("招待コードの消費に失敗しました: %w", err)
	}
	if !redeemed {
		return model.NewInvalidInviteCodeError()
	}
	return nil
}

// ListMine は自分が発行した招待一覧を返す。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.InviteCode, error) {
	invites, err := s.inviteRepo.ListByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("招待一覧の取得に失敗しました: %w", err)
	}
	return invites, nil
}

// generateCode は暗号学的乱数から招待コードを生成する。
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}
