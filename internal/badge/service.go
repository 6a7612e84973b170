package badge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brcolf/naarscars/internal/events"
	"github.com/brcolf/naarscars/internal/metrics"
	"github.com/brcolf/naarscars/internal/model"
	"github.com/brcolf/naarscars/internal/repository"
)

// Store はバッジキャッシュの操作インターフェース。
type Store interface {
	ApplyDelta(ctx context.Context, userID string, deltaMessages, deltaBell int) (model.Counts, error)
	SetConfirmed(ctx context.Context, userID string, counts model.Counts) error
	Read(ctx context.Context, userID string) (model.Counts, error)
}

// compile-time interface check
var _ Store = (*Cache)(nil)

// Service は未読バッジ数のサービス層。
//
// 権威は常にNotificationRepository.CountUnreadの集計結果であり、
// キャッシュの楽観的差分は再集計のたびに確定値で上書きされる。
type Service struct {
	notifRepo repository.NotificationRepository
	store     Store
	stream    events.Stream
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	notifRepo repository.NotificationRepository,
	store Store,
	stream events.Stream,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		notifRepo: notifRepo,
		store:     store,
		stream:    stream,
		metrics:   collector,
		logger:    logger,
	}
}

// ApplyOptimistic は楽観的差分をキャッシュへ加算し、暫定値を配信する。
func (s *Service) ApplyOptimistic(ctx context.Context, userID string, deltaMessages, deltaBell int) error {
	counts, err := s.store.ApplyDelta(ctx, userID, deltaMessages, deltaBell)
	if err != nil {
		return err
	}
	s.publishCounts(ctx, userID, counts)
	return nil
}

// Reconcile は権威ストアから未読数を再集計し、キャッシュを上書きして配信する。
// 集計クエリ自体が失敗した場合はキャッシュへ触れずにエラーを返す。
func (s *Service) Reconcile(ctx context.Context, userID string) (model.Counts, error) {
	start := time.Now()

	counts, err := s.notifRepo.CountUnread(ctx, userID)
	if err != nil {
		s.metrics.RecordReconcileFailure()
		return model.Counts{}, fmt.Errorf("未読数の再集計に失敗しました: %w", err)
	}

	if err := s.store.SetConfirmed(ctx, userID, counts); err != nil {
		// キャッシュ書き込みの失敗は次回の再集計で回復する
		s.logger.Warn("バッジ確定値の書き込みに失敗しました",
			"user_id", userID,
			"error", err)
	}

	s.publishCounts(ctx, userID, counts)
	s.metrics.RecordReconcileRun()
	s.metrics.RecordReconcileLatency(time.Since(start))
	return counts, nil
}

// Counts は表示用の未読数を返す。権威ストアの集計を優先し、
// 集計が失敗した場合のみキャッシュの暫定値へフォールバックする。
func (s *Service) Counts(ctx context.Context, userID string) (model.Counts, error) {
	counts, err := s.notifRepo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Warn("未読数の集計に失敗したためキャッシュへフォールバックします",
			"user_id", userID,
			"error", err)
		cached, cacheErr := s.store.Read(ctx, userID)
		if cacheErr != nil {
			return model.Counts{}, fmt.Errorf("未読数の取得に失敗しました: %w", err)
		}
		return cached, nil
	}

	if err := s.store.SetConfirmed(ctx, userID, counts); err != nil {
		s.logger.Warn("バッジ確定値の書き込みに失敗しました",
			"user_id", userID,
			"error", err)
	}
	return counts, nil
}

// publishCounts は未読数イベントを配信する。失敗はログのみ。
func (s *Service) publishCounts(ctx context.Context, userID string, counts model.Counts) {
	err := s.stream.Publish(ctx, events.Event{
		Type:                events.EventTypeCounts,
		UserID:              userID,
		UnreadMessages:      counts.UnreadMessages,
		UnreadNotifications: counts.UnreadNotifications,
	})
	if err != nil {
		s.logger.Warn("未読数イベントの配信に失敗しました",
			"user_id", userID,
			"error", err)
	}
}
