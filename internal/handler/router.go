package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sentinelx/internal/middleware"
)

// HealthChecker はヘルスチェックに使用する依存のインターフェース。
// *sql.DB がこれを満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	ProfileEnsurer    middleware.ProfileEnsurer
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメインサービス
	CheckService     CheckServiceInterface
	DashboardService DashboardServiceInterface
	UserService      UserServiceInterface
	ScanRunner       ScanRunner
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → Auth → RateLimit(General)
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	checkHandler := NewCheckHandler(deps.CheckService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	userHandler := NewUserHandler(deps.UserService)
	scanHandler := NewScanHandler(deps.ScanRunner)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, deps.ProfileEnsurer))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// トークンの死活確認
		r.Get("/auth/me", AuthMe)

		// オンデマンドチェック（チェック専用レート制限を追加）
		r.With(deps.RateLimiter.CheckMiddleware()).Post("/api/check-email", checkHandler.CheckEmail)

		// ダッシュボード
		r.Get("/api/dashboard", dashboardHandler.GetDashboard)

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.Me)

			r.Route("/emails", func(r chi.Router) {
				r.Get("/", userHandler.ListEmails)
				r.Post("/", userHandler.AddEmail)
				r.Delete("/", userHandler.RemoveEmail)
			})

			r.Get("/alerts", userHandler.ListAlerts)
		})

		// スキャン管理
		r.Route("/api/scan", func(r chi.Router) {
			r.Post("/run", scanHandler.RunScan)
			r.Get("/status", scanHandler.ScanStatus)
		})
	})

	return r
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// newHealthHandler はDB疎通込みのヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy"})
				return
			}
		}

		json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
	}
}
