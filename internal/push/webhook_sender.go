package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/security"
)

// gatewayTimeout はゲートウェイへの送出タイムアウト。
const gatewayTimeout = 10 * time.Second

// deliveryRequest はゲートウェイへ送るペイロード。
type deliveryRequest struct {
	Recipient      string `json:"recipient"`
	NotificationID string `json:"notification_id"`
	Type           string `json:"type"`
	SubjectID      string `json:"subject_id,omitempty"`
	Body           string `json:"body"`
}

// WebhookSender はHTTPゲートウェイへ通知を送出するSender実装。
// ゲートウェイURLは運用設定由来のためSSRF防止付きクライアントを使う。
type WebhookSender struct {
	gatewayURL string
	client     *http.Client
}

// compile-time interface check
var _ Sender = (*WebhookSender)(nil)

// NewWebhookSender はWebhookSenderを作成する。
// ゲートウェイURLの検証に失敗した場合はエラーを返す。
func NewWebhookSender(gatewayURL string, guard security.OutboundGuardService) (*WebhookSender, error) {
	if err := guard.ValidateURL(gatewayURL); err != nil {
		return nil, fmt.Errorf("プッシュゲートウェイURLの検証に失敗しました: %w", err)
	}
	return &WebhookSender{
		gatewayURL: gatewayURL,
		client:     guard.NewSafeClient(gatewayTimeout),
	}, nil
}

// Send は通知をゲートウェイへPOSTする。
func (s *WebhookSender) Send(ctx context.Context, notification *model.Notification) error {
	payload, err := json.Marshal(deliveryRequest{
		Recipient:      notification.UserID,
		NotificationID: notification.ID,
		Type:           string(notification.Type),
		SubjectID:      notification.SubjectID,
		Body:           notification.Body,
	})
	if err != nil {
		return fmt.Errorf("送出ペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("送出リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ゲートウェイへの送出に失敗しました: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ゲートウェイがエラーを返しました: status=%d", resp.StatusCode)
	}
	return nil
}
