package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brcolf/naarscars/internal/metrics"
	"github.com/brcolf/naarscars/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector
	Gatherer          prometheus.Gatherer

	// サービス
	AuthService         AuthServiceInterface
	RequestService      RequestServiceInterface
	ConversationService ConversationServiceInterface
	NotificationService NotificationServiceInterface
	CountsProvider      CountsProvider
	UserLister          UserLister
	InviteService       InviteServiceInterface
	ReviewService       ReviewServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Session → RateLimit(General)
//
// 会員登録・ログイン・パスワード再設定はセッション不要のため
// ミドルウェアチェーンのSession以降の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService)
	requestHandler := NewRequestHandler(deps.RequestService)
	convHandler := NewConversationHandler(deps.ConversationService)
	notifHandler := NewNotificationHandler(deps.NotificationService, deps.CountsProvider, deps.UserLister)
	inviteHandler := NewInviteHandler(deps.InviteService)
	reviewHandler := NewReviewHandler(deps.ReviewService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.Gatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/password-reset/request", authHandler.RequestPasswordReset)
		r.Post("/password-reset/confirm", authHandler.ResetPassword)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.UserFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// セッション管理
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)
		r.Put("/api/auth/phone", authHandler.UpdatePhone)
		r.Post("/api/auth/phone/confirm", authHandler.ConfirmPhone)

		// 依頼管理
		r.Route("/api/requests", func(r chi.Router) {
			r.Get("/", requestHandler.List)
			r.Post("/", requestHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", requestHandler.Get)
				r.Post("/claim", requestHandler.Claim)
				r.Post("/unclaim", requestHandler.Unclaim)
				r.Post("/complete", requestHandler.Complete)
				r.Post("/review/skip", reviewHandler.Skip)
			})
		})

		// 会話とメッセージ
		r.Route("/api/conversations", func(r chi.Router) {
			r.Get("/", convHandler.List)
			r.Post("/", convHandler.StartDirect)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", convHandler.Get)
				r.Get("/messages", convHandler.ListMessages)
				r.Post("/messages", convHandler.SendMessage)
			})
		})

		// 通知とバッジ
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notifHandler.ListBell)
			r.Get("/messages", notifHandler.ListMessages)
			r.Get("/counts", notifHandler.Counts)
			r.Post("/read-all", notifHandler.MarkAllRead)
			r.Post("/announcements", notifHandler.Announce)
			r.Post("/{id}/read", notifHandler.MarkRead)
			r.Put("/{id}/pin", notifHandler.SetPinned)
		})

		// 招待コード
		r.Route("/api/invites", func(r chi.Router) {
			r.Get("/", inviteHandler.ListMine)
			r.Post("/", inviteHandler.Generate)
		})

		// レビュー
		r.Post("/api/reviews", reviewHandler.Submit)
		r.Get("/api/users/{id}/reviews", reviewHandler.ListForUser)
	})

	return r
}
