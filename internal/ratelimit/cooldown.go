// Package ratelimit はアクション別のクールダウン制御を提供する。
//
// (ユーザー, アクション)の組ごとに最小実行間隔を強制する。
// UX上のスロットルであり、セキュリティ特性の唯一の防衛線としては
// 使用しないこと（権威はデータベース層の制約にある）。
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Action はクールダウン対象のアクション名を表す。
type Action string

const (
	// ActionClaim は依頼の引き受け/取り下げ。
	ActionClaim Action = "claim"
	// ActionMessage はメッセージ送信。
	ActionMessage Action = "message"
	// ActionInvite は招待コードの発行。
	ActionInvite Action = "invite"
	// ActionLogin はログイン試行。
	ActionLogin Action = "login"
	// ActionPasswordReset はパスワード再設定の要求。
	ActionPasswordReset Action = "password_reset"
)

// Config はアクション別の最小実行間隔を保持する。
type Config struct {
	Intervals       map[Action]time.Duration
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultConfig はデフォルトのクールダウン設定を返す。
// claim/unclaim 10秒、メッセージ送信 1秒、招待発行 10秒、
// ログイン 2秒、パスワード再設定 30秒。
func DefaultConfig() Config {
	return Config{
		Intervals: map[Action]time.Duration{
			ActionClaim:         10 * time.Second,
			ActionMessage:       1 * time.Second,
			ActionInvite:        10 * time.Second,
			ActionLogin:         2 * time.Second,
			ActionPasswordReset: 30 * time.Second,
		},
		CleanupInterval: 5 * time.Minute,
	}
}

// entry は1つの(ユーザー, アクション)キーのリミッターと最終アクセス時刻。
type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// key はリミッターマップのキー。比較可能な構造体で文字列連結を避ける。
type key struct {
	actorID string
	action  Action
}

// Cooldown は(ユーザー, アクション)ごとのクールダウンを管理する。
//
// エントリの生成と参照はミューテックスで直列化されるため、
// 間隔未経過の2つのほぼ同時の呼び出しのうち成功するのは必ず1つだけ。
type Cooldown struct {
	config Config

	mu      sync.Mutex
	entries map[key]*entry

	stopCh chan struct{}
}

// NewCooldown は新しいCooldownを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewCooldown(config Config) *Cooldown {
	c := &Cooldown{
		config:  config,
		entries: make(map[key]*entry),
		stopCh:  make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (c *Cooldown) Stop() {
	close(c.stopCh)
}

// Allow は(actorID, action)の実行可否を判定し、許可した場合は記録する。
// 前回の許可から最小間隔が経過していない場合はfalseを返し、記録は更新しない。
// 間隔が設定されていないアクションは常に許可する。
func (c *Cooldown) Allow(actorID string, action Action) bool {
	interval, ok := c.config.Intervals[action]
	if !ok || interval <= 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{actorID: actorID, action: action}
	e, exists := c.entries[k]
	if !exists {
		// バースト1のリミッター: 初回は即許可、以後は間隔経過まで拒否
		e = &entry{limiter: rate.NewLimiter(rate.Every(interval), 1)}
		c.entries[k] = e
	}
	e.lastAccess = time.Now()

	return e.limiter.Allow()
}

// Reset は(actorID, action)の記録を破棄する。主にテスト用。
func (c *Cooldown) Reset(actorID string, action Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key{actorID: actorID, action: action})
}

// Len は現在管理されているエントリ数を返す。テストおよびメトリクス用。
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (c *Cooldown) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (c *Cooldown) cleanup() {
	ttl := c.config.CleanupInterval * 2
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(c.entries, k)
		}
	}
}
