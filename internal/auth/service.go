// Package auth は招待制の会員登録、ログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/ratelimit"
	"github.com/brcolf/naarscars/internal/repository"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 8

// passwordResetTTL はパスワード再設定トークンの有効期間。
const passwordResetTTL = time.Hour

// InviteRedeemer は招待コード消費のインターフェース。
type InviteRedeemer interface {
	Redeem(ctx context.Context, code, userID string) error
}

// Limiter は連打抑止のインターフェース。
type Limiter interface {
	Allow(actorID string, action ratelimit.Action) bool
}

// Mailer はパスワード再設定メール送信のインターフェース。
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	resetRepo   repository.PasswordResetRepository
	invites     InviteRedeemer
	limiter     Limiter
	mailer      Mailer
	config      ServiceConfig
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	resetRepo repository.PasswordResetRepository,
	invites InviteRedeemer,
	limiter Limiter,
	mailer Mailer,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		resetRepo:   resetRepo,
		invites:     invites,
		limiter:     limiter,
		mailer:      mailer,
		config:      config,
		logger:      logger,
	}
}

// SignupInput は会員登録の入力。
type SignupInput struct {
	InviteCode string
	Email      string
	Name       string
	Password   string
}

// Signup は招待コードを消費して新規ユーザーを登録し、セッションを発行する。
func (s *Service) Signup(ctx context.Context, input SignupInput) (*model.User, *model.Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if len(input.Password) < minPasswordLength {
		return nil, nil, model.NewWeakPasswordError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, model.NewEmailTakenError()
		}
		return nil, nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	// 招待コードの消費は条件付きUPDATEで高々1回。レースの敗者は登録を完了できない。
	if err := s.invites.Redeem(ctx, input.InviteCode, user.ID); err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("新規ユーザーが登録されました",
		"user_id", user.ID)
	return user, session, nil
}

// Login はメールアドレスとパスワードでログインし、セッションを発行する。
// 資格情報の誤りは存在の有無を区別せず同じエラーで返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if !s.limiter.Allow(email, ratelimit.ActionLogin) {
		return nil, nil, model.NewRateLimitedError("ログイン")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("セッションIDが指定されていません")
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdatePhone は電話番号を登録する。検証フラグは未検証へ戻る。
func (s *Service) UpdatePhone(ctx context.Context, userID, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return model.NewMissingPhoneNumberError()
	}
	if err := s.userRepo.UpdatePhone(ctx, userID, phone, false); err != nil {
		return fmt.Errorf("電話番号の更新に失敗しました: %w", err)
	}
	return nil
}

// ConfirmPhone は登録済みの電話番号を検証済みにする。
// 検証コードの照合はSMS連携側で完了している前提。
func (s *Service) ConfirmPhone(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if user.Phone == "" {
		return model.NewMissingPhoneNumberError()
	}
	if err := s.userRepo.UpdatePhone(ctx, userID, user.Phone, true); err != nil {
		return fmt.Errorf("電話番号の検証に失敗しました: %w", err)
	}
	return nil
}

// RequestPasswordReset は再設定トークンを発行してメール送信を引き継ぐ。
// メールアドレスの存在有無を呼び出し元へ漏らさないため、常に成功を返す。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	if !s.limiter.Allow(email, ratelimit.ActionPasswordReset) {
		return model.NewRateLimitedError("パスワード再設定")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("トークンの生成に失敗しました: %w", err)
	}
	reset := &model.PasswordReset{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(passwordResetTTL),
	}
	if err := s.resetRepo.Create(ctx, reset); err != nil {
		return fmt.Errorf("再設定トークンの保存に失敗しました: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, email, token); err != nil {
		s.logger.Error("再設定メールの送信に失敗しました",
			"user_id", user.ID,
			"error", err)
	}
	return nil
}

// ResetPassword はトークンを消費してパスワードを更新し、既存セッションを無効化する。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return model.NewWeakPasswordError()
	}

	reset, err := s.resetRepo.Consume(ctx, token)
	if err != nil {
		return fmt.Errorf("トークンの消費に失敗しました: %w", err)
	}
	if reset == nil {
		return model.NewInvalidCredentialsError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, reset.UserID, string(hash)); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	// 再設定後は全デバイスで再ログインさせる
	if err := s.sessionRepo.DeleteByUserID(ctx, reset.UserID); err != nil {
		s.logger.Warn("既存セッションの無効化に失敗しました",
			"user_id", reset.UserID,
			"error", err)
	}
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
	return session, nil
}

// generateToken は暗号的に安全なトークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
