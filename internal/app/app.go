package app

import (
	"context"
	"database/sql"
	"errors"
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
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/blogcore/internal/auth"
	"github.com/hitoshi/blogcore/internal/config"
	"github.com/hitoshi/blogcore/internal/contact"
	"github.com/hitoshi/blogcore/internal/database"
	"github.com/hitoshi/blogcore/internal/handler"
	"github.com/hitoshi/blogcore/internal/logger"
	"github.com/hitoshi/blogcore/internal/metrics"
	"github.com/hitoshi/blogcore/internal/middleware"
	"github.com/hitoshi/blogcore/internal/post"
	"github.com/hitoshi/blogcore/internal/repository"
	"github.com/hitoshi/blogcore/internal/security"
	"github.com/hitoshi/blogcore/internal/session"
	"github.com/hitoshi/blogcore/internal/user"
	"github.com/hitoshi/blogcore/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.String("session_store", cfg.SessionStore),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, MigrateDirection(args))
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// sessionStore はセッションリポジトリと、その後始末をまとめたもの。
type sessionStore struct {
	repo  repository.SessionRepository
	close func() error
}

// openSessionStore は設定に応じたセッションストアを生成する。
// memoryはプロセス内のみで共有されるため、単一プロセスでの運用に限る。
func openSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (*sessionStore, error) {
	noop := func() error { return nil }

	switch cfg.SessionStore {
	case config.SessionStorePostgres:
		if db == nil {
			return nil, errors.New("postgres session store requires a database connection")
		}
		return &sessionStore{repo: repository.NewPostgresSessionRepo(db), close: noop}, nil

	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established", slog.String("addr", opts.Addr))
		return &sessionStore{
			repo:  repository.NewRedisSessionRepo(rdb, cfg.SessionRetention),
			close: rdb.Close,
		}, nil

	case config.SessionStoreMemory:
		slog.Warn("using in-memory session store; sessions are lost on restart")
		return &sessionStore{repo: repository.NewMemorySessionRepo(), close: noop}, nil

	default:
		return nil, fmt.Errorf("unknown session store: %q", cfg.SessionStore)
	}
}

// server はserveモードで使う構成済みの依存関係。
type server struct {
	handler     http.Handler
	sweep       *cleanup.SessionSweepJob
	rateLimiter *middleware.RateLimiter
}

// newServer はリポジトリ・サービス・ハンドラーをワイヤリングする。
func newServer(cfg *config.Config, db *sql.DB, sessions repository.SessionRepository) *server {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)

	// 3. ドメインサービスの初期化
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	sanitizer := security.NewContentSanitizer()
	sessionManager := session.NewManager(sessions, session.Config{
		TTL:          cfg.SessionTTL,
		StoreTimeout: cfg.StoreTimeout,
	})
	authService := auth.NewService(userRepo, hasher, sessionManager, collector, auth.ServiceConfig{
		UnifiedLoginErrors: cfg.LoginUnifiedErrors,
		StoreTimeout:       cfg.StoreTimeout,
	})
	userService := user.NewService(userRepo, hasher, cfg.StoreTimeout)
	postService := post.NewService(postRepo, commentRepo, sanitizer, cfg.StoreTimeout)
	contactService := contact.NewService(contactRepo, sanitizer, cfg.StoreTimeout)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			Enabled:      cfg.CSRFEnabled,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		GatedResources: cfg.GatedResources,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		UserService:    userService,
		PostService:    postService,
		ContactService: contactService,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),
	})

	// 5. セッション掃除ジョブ
	sweep := cleanup.NewSessionSweepJob(sessions, slog.Default(), collector)
	sweep.Retention = cfg.SessionRetention

	return &server{handler: router, sweep: sweep, rateLimiter: rateLimiter}
}

// runServe はAPIサーバーモードで起動する。
// セッション掃除ジョブも同じプロセスで実行する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := openSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer store.close()

	srv := newServer(cfg, db, store.repo)
	defer srv.rateLimiter.Stop()

	go srv.sweep.Start(ctx, cfg.SessionSweepInterval)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// セッション掃除ジョブのみを実行し、ctxがキャンセルされると終了する。
// memoryストアはプロセス外から掃除できないためエラーにする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.SessionStore == config.SessionStoreMemory {
		return errors.New("worker cannot sweep an in-memory session store; run serve instead")
	}

	var db *sql.DB
	if cfg.SessionStore == config.SessionStorePostgres {
		var err error
		db, err = openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	store, err := openSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer store.close()

	sweep := cleanup.NewSessionSweepJob(store.repo, slog.Default(), nil)
	sweep.Retention = cfg.SessionRetention

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.SessionSweepInterval),
		slog.Duration("retention", cfg.SessionRetention),
	)

	sweep.Start(ctx, cfg.SessionSweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// directionは up（デフォルト）、down（1つ戻す）、version（現在のバージョンを表示）のいずれか。
func runMigrate(cfg *config.Config, direction string) error {
	slog.Info("running database migrations",
		slog.String("direction", direction),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch direction {
	case "up":
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case "down":
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case "version":
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		return fmt.Errorf("unknown migrate direction: %q (want up, down or version)", direction)
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
