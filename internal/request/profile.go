package request

import (
	"context"
	"fmt"

	"github.com/brcolf/naarscars/internal/repository"
)

// ProfileChecker は引き受け前の連絡先確認インターフェース。
type ProfileChecker interface {
	// HasVerifiedPhone は検証済みの電話番号が登録されているかを返す。
	HasVerifiedPhone(ctx context.Context, userID string) (bool, error)
}

// RepositoryProfileChecker はユーザーリポジトリを参照するProfileChecker実装。
type RepositoryProfileChecker struct {
	userRepo repository.UserRepository
}

// compile-time interface check
var _ ProfileChecker = (*RepositoryProfileChecker)(nil)

// NewRepositoryProfileChecker はRepositoryProfileCheckerを作成する。
func NewRepositoryProfileChecker(userRepo repository.UserRepository) *RepositoryProfileChecker {
	return &RepositoryProfileChecker{userRepo: userRepo}
}

// HasVerifiedPhone は検証済みの電話番号が登録されているかを返す。
func (c *RepositoryProfileChecker) HasVerifiedPhone(ctx context.Context, userID string) (bool, error) {
	user, err := c.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return false, nil
	}
	return user.Phone != "" && user.PhoneVerified, nil
}
