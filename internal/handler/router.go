package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/fileteluss/internal/metrics"
	"github.com/hitoshi/fileteluss/internal/middleware"
	"github.com/hitoshi/fileteluss/internal/model"
)

// HealthChecker は依存先の疎通を確認する。
type HealthChecker func(ctx context.Context) error

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	FrameOrigins      []string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	Now               func() time.Time

	// ヘルスチェック
	HealthCheck HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ファイル
	FileService FileServiceInterface

	// 動画
	VideoService VideoServiceInterface
	PlaybackTTL  time.Duration

	// ポートフォリオ
	Portfolio PortfolioProvider

	// 管理
	AdminService AdminServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → RateLimit(General) → CSRF
//
// 保護ルートはさらにRequireRoute、機能ルートはRequireFeatureを通過する。
func NewRouter(deps *RouterDeps) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := middleware.GateConfig{Now: now, Metrics: deps.Metrics}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.FrameOrigins...))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authConfig := deps.AuthConfig
	if authConfig.Now == nil {
		authConfig.Now = now
	}
	authHandler := NewAuthHandler(deps.AuthService, authConfig)
	homeHandler := NewHomeHandler(summarizer(deps.FileService), now)
	fileHandler := NewFileHandler(deps.FileService)
	videoHandler := NewVideoHandler(deps.VideoService, deps.PlaybackTTL)
	portfolioHandler := NewPortfolioHandler(deps.Portfolio)
	adminHandler := NewAdminHandler(deps.AdminService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		// 登録・ログインは専用レート制限を追加
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.AuthMiddleware())
			}
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRoute(false, gate))

		r.Get("/api/home", homeHandler.Dashboard)

		// ファイル管理
		r.Route("/api/files", func(r chi.Router) {
			r.Use(middleware.RequireFeature(model.FeatureFiles, gate))
			r.Get("/", fileHandler.ListFiles)
			r.Post("/", fileHandler.UploadFile)
			r.Get("/{id}", fileHandler.DownloadFile)
			r.Delete("/{id}", fileHandler.DeleteFile)
		})

		// 動画ライブラリ（カタログの変更は管理者のみ）
		r.Route("/api/videos", func(r chi.Router) {
			r.Use(middleware.RequireFeature(model.FeatureVideos, gate))
			r.Get("/", videoHandler.ListVideos)
			r.Get("/{id}/stream", videoHandler.StreamVideo)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(gate))
				r.Post("/youtube", videoHandler.AddYouTube)
				r.Post("/local", videoHandler.AddLocal)
				r.Delete("/{id}", videoHandler.DeleteVideo)
			})
		})

		// ポートフォリオ
		r.With(middleware.RequireFeature(model.FeaturePortfolio, gate)).
			Get("/api/portfolio", portfolioHandler.GetPortfolio)
	})

	// --- 管理者ルート ---
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireRoute(true, gate))
		r.Get("/users", adminHandler.ListUsers)
		r.Get("/stats", adminHandler.GetStats)
		r.Route("/users/{email}", func(r chi.Router) {
			r.Put("/status", adminHandler.SetStatus)
			r.Put("/features", adminHandler.SetFeatures)
			r.Put("/features/{feature}", adminHandler.ToggleFeature)
			r.Put("/role", adminHandler.SetRole)
			r.Put("/expiry", adminHandler.SetExpiry)
		})
	})

	return r
}

// summarizer はファイルサービスがダッシュボード集計を提供する場合にそれを返す。
func summarizer(svc FileServiceInterface) StorageSummarizer {
	if s, ok := svc.(StorageSummarizer); ok {
		return s
	}
	return nil
}

// healthHandler は依存先の疎通確認結果を返すハンドラーを生成する。
func healthHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
