// Package notification は通知のファンアウトと既読管理のドメインロジックを提供する。
//
// ベル通知（claim / ride_update / review / announcement）とメッセージ着信通知は
// 別の操作として公開される。呼び出し側が種別を取り違えてベルフィードを
// メッセージで汚染することは構造上できない。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brcolf/naarscars/internal/events"
	"github.com/brcolf/naarscars/internal/metrics"
	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/push"
	"github.com/brcolf/naarscars/internal/repository"
)

// Badge は未読バッジへの楽観的な加算のインターフェース。
// 加算は暫定値であり、権威ストアからの再集計で上書きされる。
type Badge interface {
	ApplyOptimistic(ctx context.Context, userID string, deltaMessages, deltaBell int) error
}

// Recounter は権威ストアからの未読数再集計のインターフェース。
type Recounter interface {
	Reconcile(ctx context.Context, userID string) (model.Counts, error)
}

// Service は通知ファンアウトのサービス層。
//
// 通知レコードの挿入だけが耐久的な操作であり、バッジ加算、イベント配信、
// プッシュ送出はすべて追い掛けの配送作業にすぎない。これらの失敗は
// ログとメトリクスに残すだけで、呼び出し元の操作を失敗させない。
type Service struct {
	notifRepo repository.NotificationRepository
	badge     Badge
	recounter Recounter
	stream    events.Stream
	sender    push.Sender
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	notifRepo repository.NotificationRepository,
	badge Badge,
	recounter Recounter,
	stream events.Stream,
	sender push.Sender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		notifRepo: notifRepo,
		badge:     badge,
		recounter: recounter,
		stream:    stream,
		sender:    sender,
		metrics:   collector,
		logger:    logger,
	}
}

// Notify はベル通知を受信者全員へファンアウトする。
// message種別はNotifyMessage専用であり、ここでは拒否する。
func (s *Service) Notify(ctx context.Context, typ model.NotificationType, recipientIDs []string, subjectID, body string) ([]*model.Notification, error) {
	if typ == model.NotificationTypeMessage {
		return nil, fmt.Errorf("message種別はNotifyMessageを使用してください")
	}
	notifications := s.build(typ, recipientIDs, subjectID, body)
	if err := s.insertAndDeliver(ctx, notifications, events.EventTypeNotification); err != nil {
		return nil, err
	}
	return notifications, nil
}

// NotifyMessage はメッセージ着信通知を受信者全員へファンアウトする。
// subjectIDには会話IDを渡す。
func (s *Service) NotifyMessage(ctx context.Context, recipientIDs []string, conversationID, body string) ([]*model.Notification, error) {
	notifications := s.build(model.NotificationTypeMessage, recipientIDs, conversationID, body)
	if err := s.insertAndDeliver(ctx, notifications, events.EventTypeMessage); err != nil {
		return nil, err
	}
	return notifications, nil
}

// Announce は全受信者へピン留め付きのお知らせをファンアウトする。
func (s *Service) Announce(ctx context.Context, recipientIDs []string, body string, pinned bool) ([]*model.Notification, error) {
	notifications := s.build(model.NotificationTypeAnnouncement, recipientIDs, "", body)
	for _, n := range notifications {
		n.Pinned = pinned
	}
	if err := s.insertAndDeliver(ctx, notifications, events.EventTypeNotification); err != nil {
		return nil, err
	}
	return notifications, nil
}

// build は受信者ごとの通知レコードを組み立てる。
// 同一ファンアウトの全レコードは同じ作成時刻を持つ。
func (s *Service) build(typ model.NotificationType, recipientIDs []string, subjectID, body string) []*model.Notification {
	now := time.Now().UTC()
	notifications := make([]*model.Notification, 0, len(recipientIDs))
	for _, userID := range recipientIDs {
		notifications = append(notifications, &model.Notification{
			ID:        uuid.New().String(),
			UserID:    userID,
			Type:      typ,
			SubjectID: subjectID,
			Body:      body,
			CreatedAt: now,
		})
	}
	return notifications
}

// insertAndDeliver は通知を耐久的に挿入し、配送作業を引き継ぐ。
// 挿入エラーのみを呼び出し元へ返す。
func (s *Service) insertAndDeliver(ctx context.Context, notifications []*model.Notification, eventType events.EventType) error {
	if len(notifications) == 0 {
		return nil
	}

	if err := s.notifRepo.InsertAll(ctx, notifications); err != nil {
		return fmt.Errorf("通知の挿入に失敗しました: %w", err)
	}
	s.metrics.RecordNotificationsFanned(len(notifications))

	for _, n := range notifications {
		s.deliver(ctx, n, eventType)
	}
	return nil
}

// deliver は1通知の配送作業（バッジ加算、イベント配信、プッシュ送出）を行う。
// 失敗はログに残すだけで伝播しない。
func (s *Service) deliver(ctx context.Context, n *model.Notification, eventType events.EventType) {
	deltaMessages, deltaBell := 0, 1
	if n.Type == model.NotificationTypeMessage {
		deltaMessages, deltaBell = 1, 0
	}
	if err := s.badge.ApplyOptimistic(ctx, n.UserID, deltaMessages, deltaBell); err != nil {
		s.logger.Warn("バッジの楽観的加算に失敗しました",
			"user_id", n.UserID,
			"notification_id", n.ID,
			"error", err)
	}

	if err := s.stream.Publish(ctx, events.Event{
		Type:      eventType,
		UserID:    n.UserID,
		SubjectID: n.SubjectID,
	}); err != nil {
		s.logger.Warn("イベントの配信に失敗しました",
			"user_id", n.UserID,
			"notification_id", n.ID,
			"error", err)
	}

	// プッシュ送出はリクエストのキャンセルに巻き込まれないよう切り離す
	pushCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.sender.Send(pushCtx, n); err != nil {
			s.metrics.RecordPushFailure()
			s.logger.Warn("プッシュ送出に失敗しました",
				"user_id", n.UserID,
				"notification_id", n.ID,
				"error", err)
			return
		}
		s.metrics.RecordPushDelivery()
	}()
}

// ListBell はベルフィード（message種別を除く通知一覧）を返す。
func (s *Service) ListBell(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	notifications, err := s.notifRepo.ListBell(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ベル通知一覧の取得に失敗しました: %w", err)
	}
	return notifications, nil
}

// ListMessages はmessage種別の通知一覧を返す。
func (s *Service) ListMessages(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	notifications, err := s.notifRepo.ListMessages(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("メッセージ通知一覧の取得に失敗しました: %w", err)
	}
	return notifications, nil
}

// MarkRead は本人宛の通知を既読にし、権威ストアから再集計する。
func (s *Service) MarkRead(ctx context.Context, notificationID, userID string) error {
	ok, err := s.notifRepo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	if !ok {
		return model.NewNotificationNotFoundError(notificationID)
	}
	s.recount(ctx, userID)
	return nil
}

// MarkAllRead は本人宛の未読通知をすべて既読にし、権威ストアから再集計する。
func (s *Service) MarkAllRead(ctx context.Context, userID string, includeMessages bool) error {
	if err := s.notifRepo.MarkAllRead(ctx, userID, includeMessages); err != nil {
		return fmt.Errorf("通知の一括既読化に失敗しました: %w", err)
	}
	s.recount(ctx, userID)
	return nil
}

// SetPinned はお知らせのピン留め状態を変更する。
func (s *Service) SetPinned(ctx context.Context, notificationID string, pinned bool) error {
	if err := s.notifRepo.SetPinned(ctx, notificationID, pinned); err != nil {
		return fmt.Errorf("ピン留め状態の変更に失敗しました: %w", err)
	}
	return nil
}

// recount は既読化後の権威再集計を同期的に実行する。
// 既読化が返った時点でバッジ数は確定済みであり、直後の/countsポーリングは
// 必ず再集計後の値を観測する。失敗はログのみで、既読化自体は成功のまま返す。
func (s *Service) recount(ctx context.Context, userID string) {
	if _, err := s.recounter.Reconcile(ctx, userID); err != nil {
		s.logger.Warn("既読化後の再集計に失敗しました",
			"user_id", userID,
			"error", err)
	}
}
