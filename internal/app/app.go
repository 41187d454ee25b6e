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

	"github.com/hitoshi/fileteluss/internal/admin"
	"github.com/hitoshi/fileteluss/internal/auth"
	"github.com/hitoshi/fileteluss/internal/config"
	"github.com/hitoshi/fileteluss/internal/database"
	"github.com/hitoshi/fileteluss/internal/files"
	"github.com/hitoshi/fileteluss/internal/handler"
	"github.com/hitoshi/fileteluss/internal/logger"
	"github.com/hitoshi/fileteluss/internal/metrics"
	"github.com/hitoshi/fileteluss/internal/middleware"
	"github.com/hitoshi/fileteluss/internal/portfolio"
	"github.com/hitoshi/fileteluss/internal/repository"
	"github.com/hitoshi/fileteluss/internal/security"
	"github.com/hitoshi/fileteluss/internal/videos"
	"github.com/hitoshi/fileteluss/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成
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
		slog.String("base_url", cfg.BaseURL),
		slog.String("blob_backend", cfg.BlobBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandGrantAdmin:
		if len(args) < 2 {
			return errors.New("usage: fileteluss grant-admin <email>")
		}
		return runGrantAdmin(cfg, args[1])
	default:
		return runServe(cfg)
	}
}

// openDatabase はユーザーディレクトリのDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// services はHTTP層と管理コマンドが共有するドメインサービス群。
type services struct {
	auth  *auth.Service
	admin *admin.Service
}

// buildServices はリポジトリと認証・管理サービスを組み立てる。
func buildServices(db *sql.DB, cfg *config.Config, mc metrics.MetricsCollector) (*services, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	credentialRepo := repository.NewPostgresCredentialRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 2. セキュリティサービスの初期化
	signer, err := security.NewTokenSigner(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	authenticator := repository.NewPostgresAuthenticator(credentialRepo, sessionRepo, hasher, signer, cfg.SessionTTL())
	authService := auth.NewService(
		userRepo, authenticator, sanitizer, mc,
		auth.ServiceConfig{PasswordMinLength: cfg.PasswordMinLength},
		slog.Default(),
	)
	adminService := admin.NewService(userRepo, sessionRepo, slog.Default())

	return &services{auth: authService, admin: adminService}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続とBlobストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := metrics.NewCollector(registry)

	// 3. Blobストアの初期化
	st, err := openStorage(ctx, cfg, mc, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()

	// 4. ドメインサービスの初期化
	svc, err := buildServices(db, cfg, mc)
	if err != nil {
		return err
	}
	sanitizer := security.NewTextSanitizer()
	fileService := files.NewService(st.files, sanitizer, cfg.MaxFileSize, slog.Default())
	videoService := videos.NewService(st.catalog, st.videos, st.signer, sanitizer, cfg.MaxVideoSize, slog.Default())

	portfolioProvider, err := portfolio.NewProvider(cfg.PortfolioURL)
	if err != nil {
		return fmt.Errorf("invalid portfolio url: %w", err)
	}

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionResolver:   svc.auth,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		FrameOrigins:      []string{portfolioProvider.FrameOrigin()},
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:         slog.Default(),
		Metrics:        mc,
		MetricsHandler: metrics.Handler(registry),

		HealthCheck: db.PingContext,

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		FileService:  fileService,
		VideoService: videoService,
		PlaybackTTL:  cfg.S3PresignTTL,
		Portfolio:    portfolioProvider,
		AdminService: handler.NewAdminServiceAdapter(svc.admin),
	})

	// 6. HTTPサーバーの起動
	// 大容量アップロードと動画配信があるため、ボディの読み書きにはタイムアウトを設けない
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewSessionCleanupJob(db, slog.Default())
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.Migrate(cfg.DatabaseURL, slog.Default())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runGrantAdmin は登録済みユーザーを承認済みの管理者にする。
func runGrantAdmin(cfg *config.Config, email string) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := buildServices(db, cfg, metrics.NopCollector{})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := svc.admin.GrantAdmin(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to grant admin to %s: %w", email, err)
	}

	slog.Info("admin role granted",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
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
