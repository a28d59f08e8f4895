package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ytreply/internal/guard"
	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger         *slog.Logger
	StatusObserver middleware.StatusObserver
	HealthChecker  HealthChecker

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証状態とガード
	Stores      StoreRegistry
	GuardConfig guard.Config

	// ページ
	Renderer PageRenderer
	Plans    PlanCatalog

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	VideoService     VideoServiceInterface
	ChannelService   ChannelServiceInterface
	UserService      UserServiceInterface
	BillingService   BillingServiceInterface
	DashboardService DashboardServiceInterface

	// MetricsHandler がnilの場合は/metricsを公開しない
	MetricsHandler http.Handler
}

// NewRouter は全ページ・APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS
//	  ページ:  CSRF(トークン配布) → Guard（特権ページのみ）
//	  API:     Session → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）はセッション・CSRFのチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusObserver))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	var resolver guard.StoreResolver = deps.Stores
	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	authHandler := NewAuthHandler(deps.AuthService, deps.Stores, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.Renderer, deps.Stores, PageServices{
		Plans:     deps.Plans,
		Dashboard: deps.DashboardService,
		Videos:    deps.VideoService,
		Channels:  deps.ChannelService,
		Users:     deps.UserService,
		LoginPath: deps.AuthConfig.withDefaults().LoginPath,
	})
	videoHandler := NewVideoHandler(deps.VideoService)
	channelHandler := NewChannelHandler(deps.ChannelService)
	userHandler := NewUserHandler(deps.UserService, deps.Stores, deps.AuthConfig)
	billingHandler := NewBillingHandler(deps.BillingService, deps.UserService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	r.Get("/health", healthHandler.Health)

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- ページ ---
	r.Group(func(r chi.Router) {
		r.Use(csrf)

		r.Get("/", pageHandler.Home)
		r.Get("/pricing", pageHandler.Pricing)
		r.Get("/forgot-password", pageHandler.ForgotPassword)

		// ログイン済みならダッシュボードへ
		r.Group(func(r chi.Router) {
			r.Use(guard.RedirectAuthenticated(resolver, deps.GuardConfig, deps.AuthConfig.withDefaults().AfterLoginPath))
			r.Get("/login", pageHandler.Login)
			r.Get("/signup", pageHandler.Signup)
		})

		// 特権ページ
		r.Group(func(r chi.Router) {
			r.Use(guard.New(resolver, deps.GuardConfig))
			r.Get("/dashboard", pageHandler.Dashboard)
			r.Get("/videos", pageHandler.Videos)
			r.Get("/channels", pageHandler.Channels)
			r.Get("/settings", pageHandler.Settings)
		})
	})

	// --- 公開API ---
	r.Get("/api/plans", billingHandler.ListPlans)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なAPI ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(csrf)

		r.Route("/api/videos", func(r chi.Router) {
			r.Get("/", videoHandler.List)
			// 動画登録は文字起こしを伴うため専用のレート制限を追加
			r.With(deps.RateLimiter.VideoRegistrationMiddleware()).Post("/", videoHandler.Register)
			r.Patch("/{id}/auto-reply", videoHandler.SetAutoReply)
			r.Delete("/{id}", videoHandler.Delete)
		})

		r.Route("/api/channels", func(r chi.Router) {
			r.Get("/", channelHandler.List)
			r.Post("/connect", channelHandler.Connect)
			r.Patch("/{id}/auto-reply", channelHandler.SetAutoReply)
			r.Delete("/{id}", channelHandler.Delete)
		})

		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", userHandler.GetProfile)
			r.Patch("/", userHandler.UpdateProfile)
		})

		r.Delete("/api/users/me", userHandler.Withdraw)
		r.Post("/api/checkout", billingHandler.Checkout)
		r.Get("/api/dashboard", dashboardHandler.Stats)
	})

	r.Handle("/static/*", view.StaticHandler())

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.NotFound(pageHandler.NotFound)

	return r
}
