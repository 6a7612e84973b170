// Package cleanup は既読通知の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した既読通知を日次バッチで削除する。
// 未読の通知は保持期間に関係なく削除しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// NotificationDeleter は古い既読通知の削除インターフェース。
type NotificationDeleter interface {
	// DeleteReadOlderThan は指定日数より古い既読通知を削除し、削除件数を返す。
	DeleteReadOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// CleanupJob は保持期間を超過した既読通知の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	deleter       NotificationDeleter
	logger        *slog.Logger
	RetentionDays int // 既読通知の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(deleter NotificationDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		deleter:       deleter,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過した既読通知を削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.deleter.DeleteReadOlderThan(ctx, j.RetentionDays)
	if err != nil {
		j.logger.Error("通知クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("通知クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("通知クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
