// Package reconcile はバッジ未読数のバックグラウンド再集計を提供する。
// 楽観的デルタのずれを権威ある集計で定期的に上書きする。
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brcolf/naarscars/internal/model"
)

// Reconciler はバッジ再集計の実行インターフェース。
type Reconciler interface {
	// Reconcile は指定ユーザーの未読数を集計し直し、キャッシュを上書きする。
	Reconcile(ctx context.Context, userID string) (model.Counts, error)
}

// Presence はリアルタイム接続中のユーザーの列挙インターフェース。
type Presence interface {
	// LiveUserIDs は現在イベントストリームを購読中のユーザーIDを返す。
	LiveUserIDs(ctx context.Context) ([]string, error)
}

// SessionLister は有効セッションを持つユーザーの列挙インターフェース。
type SessionLister interface {
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

// Poller はバッジ再集計の巡回と並列制御を行う。
// 接続中のユーザーは短い間隔で、セッションだけ残っているユーザーは
// 長い間隔で再集計する2段構えのティッカーを持つ。
type Poller struct {
	reconciler     Reconciler
	presence       Presence
	sessions       SessionLister
	logger         *slog.Logger
	maxConcurrency int

	LiveInterval time.Duration // 接続中ユーザーの再集計間隔
	IdleInterval time.Duration // 非接続ユーザーの再集計間隔
}

// NewPoller はPollerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewPoller(
	reconciler Reconciler,
	presence Presence,
	sessions SessionLister,
	logger *slog.Logger,
	maxConcurrency int,
) *Poller {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Poller{
		reconciler:     reconciler,
		presence:       presence,
		sessions:       sessions,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		LiveInterval:   10 * time.Second,
		IdleInterval:   90 * time.Second,
	}
}

// Start は2つのティッカーでポーラーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Poller) Start(ctx context.Context) {
	liveTicker := time.NewTicker(p.LiveInterval)
	defer liveTicker.Stop()
	idleTicker := time.NewTicker(p.IdleInterval)
	defer idleTicker.Stop()

	p.logger.Info("バッジ再集計ポーラーを開始しました",
		slog.Duration("live_interval", p.LiveInterval),
		slog.Duration("idle_interval", p.IdleInterval),
		slog.Int("max_concurrency", p.maxConcurrency),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("バッジ再集計ポーラーを停止しました")
			return
		case <-liveTicker.C:
			if err := p.RunLive(ctx); err != nil {
				p.logger.Error("接続中ユーザーの再集計に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		case <-idleTicker.C:
			if err := p.RunIdle(ctx); err != nil {
				p.logger.Error("非接続ユーザーの再集計に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunLive は現在イベントストリームに接続中のユーザーを再集計する。
func (p *Poller) RunLive(ctx context.Context) error {
	userIDs, err := p.presence.LiveUserIDs(ctx)
	if err != nil {
		return err
	}
	p.reconcileAll(ctx, userIDs, "live")
	return nil
}

// RunIdle は有効セッションを持つ全ユーザーを再集計する。
// 接続の有無は区別しない。接続中ユーザーの二重集計は冪等なので許容する。
func (p *Poller) RunIdle(ctx context.Context) error {
	userIDs, err := p.sessions.ListActiveUserIDs(ctx)
	if err != nil {
		return err
	}
	p.reconcileAll(ctx, userIDs, "idle")
	return nil
}

// reconcileAll はsemaphoreパターンで並列数を制御しながら各ユーザーを再集計する。
func (p *Poller) reconcileAll(ctx context.Context, userIDs []string, cycle string) {
	if len(userIDs) == 0 {
		return
	}

	start := time.Now()

	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if _, err := p.reconciler.Reconcile(ctx, id); err != nil {
				p.logger.Error("バッジ再集計に失敗しました",
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
			}
		}(userID)
	}

	wg.Wait()

	p.logger.Info("再集計サイクルが完了しました",
		slog.String("cycle", cycle),
		slog.Int("user_count", len(userIDs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
