package auth

import (
	"context"
	"log/slog"
)

// LogMailer はメール送信基盤が未設定の環境向けのMailer実装。
// 送信内容をログに書き出すだけで、実際の送信は行わない。
type LogMailer struct {
	logger *slog.Logger
}

// compile-time interface check
var _ Mailer = (*LogMailer)(nil)

// NewLogMailer はLogMailerを作成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendPasswordReset は再設定トークンをログに書き出す。
// トークン本体は記録せず、発行の事実のみを残す。
func (m *LogMailer) SendPasswordReset(_ context.Context, email, _ string) error {
	m.logger.Info("パスワード再設定メールの送信を要求されました",
		"email", email)
	return nil
}
