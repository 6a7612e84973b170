package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/brcolf/naarscars/internal/auth"
	"github.com/brcolf/naarscars/internal/badge"
	"github.com/brcolf/naarscars/internal/config"
	"github.com/brcolf/naarscars/internal/conversation"
	"github.com/brcolf/naarscars/internal/database"
	"github.com/brcolf/naarscars/internal/events"
	"github.com/brcolf/naarscars/internal/handler"
	"github.com/brcolf/naarscars/internal/invite"
	"github.com/brcolf/naarscars/internal/logger"
	"github.com/brcolf/naarscars/internal/metrics"
	"github.com/brcolf/naarscars/internal/middleware"
	"github.com/brcolf/naarscars/internal/notification"
	"github.com/brcolf/naarscars/internal/push"
	"github.com/brcolf/naarscars/internal/ratelimit"
	"github.com/brcolf/naarscars/internal/repository"
	"github.com/brcolf/naarscars/internal/request"
	"github.com/brcolf/naarscars/internal/review"
	"github.com/brcolf/naarscars/internal/security"
	"github.com/brcolf/naarscars/internal/worker/cleanup"
	"github.com/brcolf/naarscars/internal/worker/reconcile"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBとRedisの接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（バッジカウントキャッシュとイベントストリーム）
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established")

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	resetRepo := repository.NewPostgresPasswordResetRepo(db)
	requestRepo := repository.NewPostgresRequestRepo(db)
	convRepo := repository.NewPostgresConversationRepo(db)
	msgRepo := repository.NewPostgresMessageRepo(db)
	notifRepo := repository.NewPostgresNotificationRepo(db)
	inviteRepo := repository.NewPostgresInviteRepo(db)
	reviewRepo := repository.NewPostgresReviewRepo(db)

	// 4. セキュリティ・スロットルの初期化
	sanitizer := security.NewContentSanitizer()
	outboundGuard := security.NewOutboundGuard()

	cooldown := ratelimit.NewCooldown(ratelimit.Config{
		Intervals: map[ratelimit.Action]time.Duration{
			ratelimit.ActionClaim:         cfg.ClaimCooldown,
			ratelimit.ActionMessage:       cfg.MessageCooldown,
			ratelimit.ActionInvite:        cfg.InviteCooldown,
			ratelimit.ActionLogin:         cfg.LoginCooldown,
			ratelimit.ActionPasswordReset: cfg.PasswordResetCooldown,
		},
		CleanupInterval: 5 * time.Minute,
	})
	defer cooldown.Stop()

	// 5. メトリクスとイベントストリームの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	stream := events.NewRedisStream(redisClient, slog.Default())

	// 6. プッシュ送信の初期化（ゲートウェイ未設定なら無効化）
	var sender push.Sender
	if cfg.PushGatewayURL != "" {
		sender, err = push.NewWebhookSender(cfg.PushGatewayURL, outboundGuard)
		if err != nil {
			return fmt.Errorf("failed to initialize push sender: %w", err)
		}
	} else {
		slog.Info("push gateway URL not configured, push delivery disabled")
		sender = push.NewNopSender()
	}

	// 7. ドメインサービスの初期化
	badgeCache := badge.NewCache(redisClient)
	badgeService := badge.NewService(notifRepo, badgeCache, stream, collector, slog.Default())

	notifService := notification.NewService(
		notifRepo, badgeService, badgeService, stream, sender, collector, slog.Default(),
	)

	binder := conversation.NewBinder(convRepo)
	convService := conversation.NewService(
		convRepo, msgRepo, binder, cooldown, sanitizer, notifService, slog.Default(),
	)

	profileChecker := request.NewRepositoryProfileChecker(userRepo)
	requestService := request.NewService(
		requestRepo, profileChecker, binder, cooldown, notifService, stream, collector, slog.Default(),
	)

	inviteService := invite.NewService(inviteRepo, cooldown, cfg.InviteTTL, slog.Default())

	mailer := auth.NewLogMailer(slog.Default())
	authService := auth.NewService(
		userRepo, sessionRepo, resetRepo, inviteService, cooldown, mailer,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		slog.Default(),
	)

	reviewService := review.NewService(reviewRepo, requestRepo, sanitizer, slog.Default())

	// 8. レート制限の初期化（configのRateLimitGeneralはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 9. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Collector:         collector,
		Gatherer:          registry,

		AuthService:         authService,
		RequestService:      requestService,
		ConversationService: convService,
		NotificationService: notifService,
		CountsProvider:      badgeService,
		UserLister:          userRepo,
		InviteService:       inviteService,
		ReviewService:       reviewService,
	}

	router := handler.NewRouter(deps)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// バッジ再集計ポーラーと通知クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. Redis接続
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 3. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	notifRepo := repository.NewPostgresNotificationRepo(db)

	// 4. バッジ再集計ポーラーの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	stream := events.NewRedisStream(redisClient, slog.Default())

	badgeCache := badge.NewCache(redisClient)
	badgeService := badge.NewService(notifRepo, badgeCache, stream, collector, slog.Default())

	poller := reconcile.NewPoller(badgeService, stream, sessionRepo, slog.Default(), 10)
	poller.LiveInterval = cfg.ReconcileLiveInterval
	poller.IdleInterval = cfg.ReconcileIdleInterval

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(notifRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.NotificationRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("live_interval", poller.LiveInterval),
		slog.Duration("idle_interval", poller.IdleInterval),
		slog.Int("retention_days", cleanupJob.RetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// バッジ再集計ポーラーをメインgoroutineで実行（ブロッキング）
	poller.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
