package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/ytreply/internal/auth"
	"github.com/hitoshi/ytreply/internal/authstate"
	"github.com/hitoshi/ytreply/internal/billing"
	"github.com/hitoshi/ytreply/internal/channel"
	"github.com/hitoshi/ytreply/internal/config"
	"github.com/hitoshi/ytreply/internal/dashboard"
	"github.com/hitoshi/ytreply/internal/database"
	"github.com/hitoshi/ytreply/internal/guard"
	"github.com/hitoshi/ytreply/internal/handler"
	"github.com/hitoshi/ytreply/internal/logger"
	"github.com/hitoshi/ytreply/internal/metrics"
	"github.com/hitoshi/ytreply/internal/middleware"
	"github.com/hitoshi/ytreply/internal/plan"
	"github.com/hitoshi/ytreply/internal/repository"
	"github.com/hitoshi/ytreply/internal/security"
	"github.com/hitoshi/ytreply/internal/sessionevent"
	"github.com/hitoshi/ytreply/internal/user"
	"github.com/hitoshi/ytreply/internal/video"
	"github.com/hitoshi/ytreply/internal/view"
	"github.com/hitoshi/ytreply/internal/worker/cleanup"
	"github.com/hitoshi/ytreply/internal/workflow"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込みの失敗もJSONで記録できるよう先にログを用意する
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCheckDB:
		return runCheckDB(cfg, w)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openHub はセッションイベントのハブを開く。
// REDIS_URLが未設定の場合はプロセス内のハブを使い、他プロセスの通知は届かない。
// 返すcloseはハブとRedis接続の両方を閉じる。
func openHub(ctx context.Context, cfg *config.Config, log *slog.Logger) (sessionevent.Hub, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL is not set; session events are delivered in-process only")
		hub := sessionevent.NewMemoryHub(0)
		return hub, func() { hub.Close() }, nil
	}

	client, err := sessionevent.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	hub, err := sessionevent.NewRedisHub(ctx, client, sessionevent.DefaultChannelPrefix, log)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return hub, func() {
		hub.Close()
		client.Close()
	}, nil
}

// runServe はWebサーバーモードで起動する。
// DB接続とイベントハブを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. セッションイベントのハブ
	hub, closeHub, err := openHub(context.Background(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open session event hub: %w", err)
	}
	defer closeHub()

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	videoRepo := repository.NewPostgresVideoRepo(db)
	channelRepo := repository.NewPostgresChannelRepo(db)
	usageRepo := repository.NewPostgresUsageRepo(db)
	eventRepo := repository.NewPostgresSubscriptionEventRepo(db)

	// 4. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 5. 認証と認証状態ストア
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo, hub,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionTTL()},
		log,
	)

	stores := authstate.NewRegistry(authService.ProviderFor, authstate.RegistryConfig{
		IdleTTL:         cfg.AuthStoreIdleTTL,
		InitTimeout:     cfg.AuthInitTimeout,
		CleanupInterval: time.Minute,
	}, log, authstate.WithObserver(collector))
	defer stores.Stop()
	collector.RegisterStoreGauge(stores.Len)

	// 6. 外部連携
	workflowClient := workflow.NewClient(
		&http.Client{},
		workflow.Config{
			BaseURL:        cfg.WorkflowBaseURL,
			Timeout:        cfg.WorkflowTimeout,
			AttemptTimeout: cfg.WorkflowAttemptTimeout,
			MaxTries:       cfg.WorkflowMaxTries,
			Recorder:       collector,
		},
		log,
	)
	defer workflowClient.Wait()

	var checkout billing.SessionCreator
	if cfg.CheckoutEndpoint != "" {
		checkout = billing.NewCheckoutClient(
			&http.Client{Timeout: cfg.CheckoutTimeout},
			cfg.CheckoutEndpoint, cfg.SessionSecret, log,
		)
	} else {
		slog.Warn("CHECKOUT_ENDPOINT is not set; checkout is disabled")
	}

	// 7. ドメインサービスの初期化
	catalog := plan.Default()
	sanitizer := security.NewTextSanitizer()

	videoService := video.NewService(videoRepo, profileRepo, catalog, sanitizer, workflowClient, log)
	channelService := channel.NewService(channelRepo)
	userService := user.NewService(userRepo, profileRepo, sessionRepo, sanitizer, hub, log)
	billingService := billing.NewService(catalog, checkout, eventRepo, log)
	dashboardService := dashboard.NewService(videoRepo, usageRepo, profileRepo, catalog)

	renderer, err := view.New(log)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// 8. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig().WithPerMinute(cfg.RateLimitGeneral, cfg.RateLimitVideoReg),
	)
	defer rateLimiter.Stop()

	authConfig := handler.AuthHandlerConfig{
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: cfg.SessionMaxAge,
		LoginPath:     cfg.LoginPath,
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         log,
		StatusObserver: collector,
		HealthChecker:  db,

		SessionFinder:     handler.NewSessionFinderAdapter(authService),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		Stores: stores,
		GuardConfig: guard.Config{
			LoginPath:       cfg.LoginPath,
			WaitTimeout:     cfg.GuardWaitTimeout,
			RevalidateAfter: cfg.AuthRevalidateInterval,
			Recorder:    collector,
		},

		Renderer: renderer,
		Plans:    catalog,

		AuthService: authService,
		AuthConfig:  authConfig,

		VideoService:     videoService,
		ChannelService:   channelService,
		UserService:      userService,
		BillingService:   billingService,
		DashboardService: dashboardService,

		MetricsHandler: metrics.Handler(registry),
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションを定期的に削除し、expiredイベントを配信する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	log := slog.Default()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// プロセス内ハブへの配信はどのストアにも届かないため、Redisがある場合だけ配信する
	var publisher cleanup.Publisher
	if cfg.RedisURL != "" {
		hub, closeHub, err := openHub(context.Background(), cfg, log)
		if err != nil {
			return fmt.Errorf("failed to open session event hub: %w", err)
		}
		defer closeHub()
		publisher = hub
	} else {
		slog.Warn("REDIS_URL is not set; expired sessions are deleted without notification")
	}

	sweeper := cleanup.NewSessionSweeper(repository.NewPostgresSessionRepo(db), publisher, log)

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
		slog.Duration("sweep_interval", cfg.SessionSweepInterval),
	)

	// メインgoroutineで実行（ブロッキング）
	sweeper.Start(ctx, cfg.SessionSweepInterval)

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

// runCheckDB は必須テーブルの存在を確認し、結果をoutに1テーブル1行で出力する。
func runCheckDB(cfg *config.Config, out io.Writer) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return checkSchema(ctx, db, out)
}

// checkSchema はCheckSchemaの結果を出力し、欠けているテーブルがあればエラーを返す。
func checkSchema(ctx context.Context, db *sql.DB, out io.Writer) error {
	statuses, err := database.CheckSchema(ctx, db)
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}

	for _, st := range statuses {
		mark := "ok"
		if !st.Exists {
			mark = "missing"
		}
		fmt.Fprintf(out, "%-20s %s\n", st.Table, mark)
	}

	if missing := database.MissingTables(statuses); len(missing) > 0 {
		return fmt.Errorf("required tables are missing: %v", missing)
	}
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
