package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（バッジカウントキャッシュとイベントストリーム）
	RedisAddr string

	// Session
	SessionMaxAge int

	// クールダウン間隔（アクション別）。UX上のスロットルであり、
	// セキュリティ特性の唯一の防衛線にしてはならない。
	ClaimCooldown         time.Duration
	MessageCooldown       time.Duration
	InviteCooldown        time.Duration
	LoginCooldown         time.Duration
	PasswordResetCooldown time.Duration

	// バッジ再集計のポーリング間隔。
	// ライブ接続があるユーザーは短く、切断中のユーザーは長く。
	ReconcileLiveInterval time.Duration
	ReconcileIdleInterval time.Duration

	// 通知の保持日数（既読通知のクリーンアップ対象）
	NotificationRetentionDays int

	// 招待コードの有効期間
	InviteTTL time.Duration

	// Push（空の場合はプッシュ配信を無効化する）
	PushGatewayURL string

	// Rate Limit（API全般、req/min/user）
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 30*86400)
	cfg.ClaimCooldown = getEnvDuration("COOLDOWN_CLAIM", 10*time.Second)
	cfg.MessageCooldown = getEnvDuration("COOLDOWN_MESSAGE", 1*time.Second)
	cfg.InviteCooldown = getEnvDuration("COOLDOWN_INVITE", 10*time.Second)
	cfg.LoginCooldown = getEnvDuration("COOLDOWN_LOGIN", 2*time.Second)
	cfg.PasswordResetCooldown = getEnvDuration("COOLDOWN_PASSWORD_RESET", 30*time.Second)
	cfg.ReconcileLiveInterval = getEnvDuration("RECONCILE_LIVE_INTERVAL", 10*time.Second)
	cfg.ReconcileIdleInterval = getEnvDuration("RECONCILE_IDLE_INTERVAL", 90*time.Second)
	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 90)
	cfg.InviteTTL = getEnvDuration("INVITE_TTL", 7*24*time.Hour)
	cfg.PushGatewayURL = getEnvString("PUSH_GATEWAY_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
