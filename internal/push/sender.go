// Package push はプッシュ通知ゲートウェイへの送出を提供する。
//
// ベル通知の永続化が完了した後に呼ばれる追い掛け経路であり、
// 送出失敗は依頼や通知の状態へ影響しない。
package push

import (
	"context"

	"github.com/brcolf/naarscars/internal/model"
)

// Sender はプッシュ通知の送出インターフェース。
type Sender interface {
	// Send は通知をゲートウェイへ送出する。
	// 失敗はエラーとして返すが、呼び出し側はログに留めて続行する。
	Send(ctx context.Context, notification *model.Notification) error
}

// NopSender は何も送出しないSender実装。ゲートウェイ未設定時に使う。
type NopSender struct{}

// compile-time interface check
var _ Sender = (*NopSender)(nil)

// NewNopSender はNopSenderを作成する。
func NewNopSender() *NopSender {
	return &NopSender{}
}

// Send は何もしない。
func (s *NopSender) Send(_ context.Context, _ *model.Notification) error {
	return nil
}
