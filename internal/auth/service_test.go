package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/ratelimit"
	"github.com/brcolf/naarscars/internal/repository"
)

// mockUserRepo は関数フィールドで振る舞いを差し替えるモック。
type mockUserRepo struct {
	findByIDFunc           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFunc        func(ctx context.Context, email string) (*model.User, error)
	createFunc             func(ctx context.Context, user *model.User) error
	updatePhoneFunc        func(ctx context.Context, userID, phone string, verified bool) error
	updatePasswordHashFunc func(ctx context.Context, userID, passwordHash string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdatePhone(ctx context.Context, userID, phone string, verified bool) error {
	if m.updatePhoneFunc != nil {
		return m.updatePhoneFunc(ctx, userID, phone, verified)
	}
	return nil
}

func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	if m.updatePasswordHashFunc != nil {
		return m.updatePasswordHashFunc(ctx, userID, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

// mockSessionRepo はセッション操作を記録するモック。
type mockSessionRepo struct {
	created         *model.Session
	findByIDFunc    func(ctx context.Context, id string) (*model.Session, error)
	deletedByUserID string
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	m.created = session
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	m.deletedByUserID = userID
	return nil
}

func (m *mockSessionRepo) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

// mockResetRepo はパスワード再設定トークンのモック。
type mockResetRepo struct {
	created     *model.PasswordReset
	consumeFunc func(ctx context.Context, token string) (*model.PasswordReset, error)
}

func (m *mockResetRepo) Create(ctx context.Context, reset *model.PasswordReset) error {
	m.created = reset
	return nil
}

func (m *mockResetRepo) Consume(ctx context.Context, token string) (*model.PasswordReset, error) {
	if m.consumeFunc != nil {
		return m.consumeFunc(ctx, token)
	}
	return nil, nil
}

// mockInvites は招待コード消費を記録するモック。
type mockInvites struct {
	code   string
	userID string
	err    error
}

func (m *mockInvites) Redeem(ctx context.Context, code, userID string) error {
	m.code = code
	m.userID = userID
	return m.err
}

type stubLimiter struct {
	allow bool
}

func (s *stubLimiter) Allow(actorID string, action ratelimit.Action) bool {
	return s.allow
}

// mockMailer はメール送信を記録するモック。
type mockMailer struct {
	email string
	token string
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.email = email
	m.token = token
	return nil
}

type authDeps struct {
	userRepo    *mockUserRepo
	sessionRepo *mockSessionRepo
	resetRepo   *mockResetRepo
	invites     *mockInvites
	limiter     *stubLimiter
	mailer      *mockMailer
}

func newAuthDeps() *authDeps {
	return &authDeps{
		userRepo:    &mockUserRepo{},
		sessionRepo: &mockSessionRepo{},
		resetRepo:   &mockResetRepo{},
		invites:     &mockInvites{},
		limiter:     &stubLimiter{allow: true},
		mailer:      &mockMailer{},
	}
}

func (d *authDeps) service() *Service {
	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	return NewService(d.userRepo, d.sessionRepo, d.resetRepo, d.invites, d.limiter,
		d.mailer, ServiceConfig{SessionMaxAge: 3600}, logger)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返らなかった: %v", err)
	}
	if apiErr.Code != code {
		t.Fatalf("Code = %s, want %s", apiErr.Code, code)
	}
}

// TestSignup_Success は登録・招待消費・セッション発行の一連を検証する。
func TestSignup_Success(t *testing.T) {
	deps := newAuthDeps()
	var created *model.User
	deps.userRepo.createFunc = func(ctx context.Context, user *model.User) error {
		created = user
		return nil
	}
	svc := deps.service()

	user, session, err := svc.Signup(context.Background(), SignupInput{
		InviteCode: "GOODCODE",
		Email:      "  Alice@Example.com ",
		Name:       "Alice",
		Password:   "correct-horse",
	})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if created == nil {
		t.Fatal("ユーザーが作成されなかった")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Email = %s, 正規化されていない", user.Email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")); err != nil {
		t.Error("パスワードハッシュが照合できない")
	}
	if deps.invites.code != "GOODCODE" || deps.invites.userID != user.ID {
		t.Errorf("招待の消費が不正: code=%s userID=%s", deps.invites.code, deps.invites.userID)
	}
	if session == nil || deps.sessionRepo.created == nil {
		t.Fatal("セッションが発行されなかった")
	}
	if session.UserID != user.ID {
		t.Errorf("セッションのUserID = %s, want %s", session.UserID, user.ID)
	}
}

// TestSignup_WeakPassword は短いパスワードでユーザーが作成されないことを検証する。
func TestSignup_WeakPassword(t *testing.T) {
	deps := newAuthDeps()
	created := false
	deps.userRepo.createFunc = func(ctx context.Context, user *model.User) error {
		created = true
		return nil
	}

	_, _, err := deps.service().Signup(context.Background(), SignupInput{
		InviteCode: "GOODCODE",
		Email:      "alice@example.com",
		Password:   "short",
	})
	assertAPIError(t, err, model.ErrCodeWeakPassword)
	if created {
		t.Error("弱いパスワードでユーザーが作成された")
	}
}

// TestSignup_EmailTaken は重複メールアドレスでEMAIL_TAKENが返ることを検証する。
func TestSignup_EmailTaken(t *testing.T) {
	deps := newAuthDeps()
	deps.userRepo.createFunc = func(ctx context.Context, user *model.User) error {
		return repository.ErrDuplicate
	}

	_, _, err := deps.service().Signup(context.Background(), SignupInput{
		InviteCode: "GOODCODE",
		Email:      "alice@example.com",
		Password:   "correct-horse",
	})
	assertAPIError(t, err, model.ErrCodeEmailTaken)
}

// TestSignup_InvalidInvite は招待コード消費の失敗が伝播することを検証する。
func TestSignup_InvalidInvite(t *testing.T) {
	deps := newAuthDeps()
	deps.invites.err = model.NewInvalidInviteCodeError()

	_, _, err := deps.service().Signup(context.Background(), SignupInput{
		InviteCode: "USEDCODE",
		Email:      "alice@example.com",
		Password:   "correct-horse",
	})
	assertAPIError(t, err, model.ErrCodeInvalidInviteCode)
}

// TestLogin_Success は正しい資格情報でセッションが発行されることを検証する。
func TestLogin_Success(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	deps := newAuthDeps()
	deps.userRepo.findByEmailFunc = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: "user-1", Email: email, PasswordHash: string(hash)}, nil
	}

	user, session, err := deps.service().Login(context.Background(), "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("UserID = %s, want user-1", user.ID)
	}
	if session == nil || session.ID == "" {
		t.Fatal("セッションが発行されなかった")
	}
}

// TestLogin_WrongPassword は誤ったパスワードでINVALID_CREDENTIALSが返ることを検証する。
func TestLogin_WrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	deps := newAuthDeps()
	deps.userRepo.findByEmailFunc = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: "user-1", PasswordHash: string(hash)}, nil
	}

	_, _, err = deps.service().Login(context.Background(), "alice@example.com", "wrong")
	assertAPIError(t, err, model.ErrCodeInvalidCredentials)
}

// TestLogin_UnknownEmail は未登録メールでも同じエラーコードを返すことを検証する。
func TestLogin_UnknownEmail(t *testing.T) {
	deps := newAuthDeps()

	_, _, err := deps.service().Login(context.Background(), "ghost@example.com", "anything")
	assertAPIError(t, err, model.ErrCodeInvalidCredentials)
}

// TestLogin_RateLimited はクールダウン中のログイン試行が拒否されることを検証する。
func TestLogin_RateLimited(t *testing.T) {
	deps := newAuthDeps()
	deps.limiter.allow = false
	lookedUp := false
	deps.userRepo.findByEmailFunc = func(ctx context.Context, email string) (*model.User, error) {
		lookedUp = true
		return nil, nil
	}

	_, _, err := deps.service().Login(context.Background(), "alice@example.com", "x")
	assertAPIError(t, err, model.ErrCodeRateLimited)
	if lookedUp {
		t.Error("クールダウン中にユーザー検索が実行された")
	}
}

// TestRequestPasswordReset_UnknownEmail は未登録メールでも成功を装うことを検証する。
func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	deps := newAuthDeps()

	if err := deps.service().RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if deps.resetRepo.created != nil {
		t.Error("未登録メールでトークンが発行された")
	}
}

// TestRequestPasswordReset_SendsToken は既知メールでトークンが発行・送信されることを検証する。
func TestRequestPasswordReset_SendsToken(t *testing.T) {
	deps := newAuthDeps()
	deps.userRepo.findByEmailFunc = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: "user-1", Email: email}, nil
	}

	if err := deps.service().RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if deps.resetRepo.created == nil {
		t.Fatal("トークンが保存されなかった")
	}
	if deps.mailer.token != deps.resetRepo.created.Token {
		t.Error("保存されたトークンと送信されたトークンが一致しない")
	}
}

// TestResetPassword_InvalidToken は無効トークンでINVALID_CREDENTIALSが返ることを検証する。
func TestResetPassword_InvalidToken(t *testing.T) {
	deps := newAuthDeps()

	err := deps.service().ResetPassword(context.Background(), "bad-token", "new-password")
	assertAPIError(t, err, model.ErrCodeInvalidCredentials)
}

// TestResetPassword_Success はパスワード更新と既存セッションの無効化を検証する。
func TestResetPassword_Success(t *testing.T) {
	deps := newAuthDeps()
	deps.resetRepo.consumeFunc = func(ctx context.Context, token string) (*model.PasswordReset, error) {
		return &model.PasswordReset{Token: token, UserID: "user-1"}, nil
	}
	var newHash string
	deps.userRepo.updatePasswordHashFunc = func(ctx context.Context, userID, passwordHash string) error {
		newHash = passwordHash
		return nil
	}

	if err := deps.service().ResetPassword(context.Background(), "good-token", "new-password"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-password")); err != nil {
		t.Error("新しいハッシュが照合できない")
	}
	if deps.sessionRepo.deletedByUserID != "user-1" {
		t.Error("既存セッションが無効化されていない")
	}
}

// TestConfirmPhone_WithoutPhone は電話番号未登録の検証が拒否されることを検証する。
func TestConfirmPhone_WithoutPhone(t *testing.T) {
	deps := newAuthDeps()
	deps.userRepo.findByIDFunc = func(ctx context.Context, id string) (*model.User, error) {
		return &model.User{ID: id}, nil
	}

	err := deps.service().ConfirmPhone(context.Background(), "user-1")
	assertAPIError(t, err, model.ErrCodeMissingPhoneNumber)
}

// TestUpdatePhone_ResetsVerification は番号変更で検証フラグが未検証へ戻ることを検証する。
func TestUpdatePhone_ResetsVerification(t *testing.T) {
	deps := newAuthDeps()
	var gotVerified bool
	deps.userRepo.updatePhoneFunc = func(ctx context.Context, userID, phone string, verified bool) error {
		gotVerified = verified
		return nil
	}

	if err := deps.service().UpdatePhone(context.Background(), "user-1", "090-1234-5678"); err != nil {
		t.Fatalf("UpdatePhone() error = %v", err)
	}
	if gotVerified {
		t.Error("番号変更直後に検証済みになっている")
	}
}
