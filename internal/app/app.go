package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sentinelx/internal/auth"
	"github.com/hitoshi/sentinelx/internal/breach"
	"github.com/hitoshi/sentinelx/internal/check"
	"github.com/hitoshi/sentinelx/internal/config"
	"github.com/hitoshi/sentinelx/internal/dashboard"
	"github.com/hitoshi/sentinelx/internal/database"
	"github.com/hitoshi/sentinelx/internal/handler"
	"github.com/hitoshi/sentinelx/internal/hibp"
	"github.com/hitoshi/sentinelx/internal/logger"
	"github.com/hitoshi/sentinelx/internal/metrics"
	"github.com/hitoshi/sentinelx/internal/middleware"
	"github.com/hitoshi/sentinelx/internal/notifier"
	"github.com/hitoshi/sentinelx/internal/repository"
	"github.com/hitoshi/sentinelx/internal/user"
	"github.com/hitoshi/sentinelx/internal/worker/retention"
	"github.com/hitoshi/sentinelx/internal/worker/scan"
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
		slog.Bool("simulated_data", cfg.UseSimulatedData),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandScan:
		return runScanOnce(cfg)
	default:
		return runServe(cfg)
	}
}

// services はモード間で共通のドメインサービス一式。
type services struct {
	userRepo      *repository.PostgresUserRepo
	userEmailRepo *repository.PostgresUserEmailRepo
	alertRepo     *repository.PostgresAlertRepo
	monitoredRepo *repository.PostgresMonitoredEmailRepo
	checkRepo     *repository.PostgresCheckRepo

	checkService *check.Service
	collector    *metrics.Collector
	registry     *prometheus.Registry
}

// buildServices はDB接続から共通のサービス群をワイヤリングする。
// serve / worker / scan の各モードが同じチェックパイプラインを共有する。
func buildServices(cfg *config.Config, db *sql.DB) (*services, error) {
	userRepo := repository.NewPostgresUserRepo(db)
	userEmailRepo := repository.NewPostgresUserEmailRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)
	monitoredRepo := repository.NewPostgresMonitoredEmailRepo(db)
	checkRepo := repository.NewPostgresCheckRepo(db)

	normalizer := breach.NewNormalizer()

	simulated, err := breach.NewSimulatedSource(normalizer, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to load simulated breach data: %w", err)
	}

	hibpClient := hibp.NewClient(
		&http.Client{Timeout: cfg.HIBPTimeout},
		normalizer,
		slog.Default(),
		hibp.ClientConfig{
			APIKey:      cfg.HIBPAPIKey,
			UserAgent:   cfg.HIBPUserAgent,
			MinInterval: cfg.HIBPMinInterval,
		},
	)

	smtpNotifier := notifier.NewSMTPNotifier(notifier.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.AlertEmailFrom,
	}, slog.Default())

	checkService := check.NewService(
		hibpClient, simulated, checkRepo, userRepo,
		smtpNotifier, slog.Default(), cfg.UseSimulatedData,
	)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	return &services{
		userRepo:      userRepo,
		userEmailRepo: userEmailRepo,
		alertRepo:     alertRepo,
		monitoredRepo: monitoredRepo,
		checkRepo:     checkRepo,
		checkService:  checkService,
		collector:     collector,
		registry:      registry,
	}, nil
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svcs, err := buildServices(cfg, db)
	if err != nil {
		return err
	}

	userService := user.NewService(
		svcs.userRepo, svcs.userEmailRepo, svcs.alertRepo, svcs.monitoredRepo,
		svcs.checkService, slog.Default(),
	)
	dashboardService := dashboard.NewService(svcs.checkRepo, svcs.alertRepo)
	scanner := scan.NewScanner(svcs.userRepo, svcs.checkService, svcs.collector, slog.Default())

	verifier, err := auth.NewStaticTokenVerifier(cfg.AuthStaticTokens)
	if err != nil {
		return fmt.Errorf("failed to parse auth tokens: %w", err)
	}

	// レート制限設定（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.CheckRate = rate.Limit(float64(cfg.RateLimitCheck) / 60.0)
	rateLimiterCfg.CheckBurst = cfg.RateLimitCheck

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     verifier,
		ProfileEnsurer:    userService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(svcs.registry),

		CheckService:     svcs.checkService,
		DashboardService: dashboardService,
		UserService:      userService,
		ScanRunner:       scanner,
	})

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

// runWorker は監視ワーカーモードで起動する。
// DB接続を開き、スキャンスケジューラと履歴クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if !cfg.MonitorEnabled {
		slog.Info("monitoring is disabled (MONITOR_ENABLED=false), worker exiting")
		return nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svcs, err := buildServices(cfg, db)
	if err != nil {
		return err
	}

	scanner := scan.NewScanner(svcs.userRepo, svcs.checkService, svcs.collector, slog.Default())
	scheduler := scan.NewScheduler(scanner, slog.Default(), cfg.ScanInterval, cfg.ScanPollSlice)

	retentionJob := retention.NewJob(svcs.checkRepo, slog.Default())
	retentionJob.RetentionDays = cfg.CheckRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("worker starting",
		slog.Duration("scan_interval", cfg.ScanInterval),
		slog.Duration("poll_slice", cfg.ScanPollSlice),
		slog.Int("retention_days", cfg.CheckRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go retentionJob.Start(ctx)

	// ワーカーモードでもメトリクスを公開する
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: workerMetricsMux(svcs.registry, db),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	scheduler.Start(ctx)

	<-stop
	slog.Info("shutting down worker...")
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runScanOnce はフルスキャンを1回実行して終了する。
// cronなど外部スケジューラから定期実行する運用向け。
func runScanOnce(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svcs, err := buildServices(cfg, db)
	if err != nil {
		return err
	}

	scanner := scan.NewScanner(svcs.userRepo, svcs.checkService, svcs.collector, slog.Default())

	stats, err := scanner.RunFullScan(context.Background())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	slog.Info("scan completed",
		slog.Int("users_scanned", stats.UsersScanned),
		slog.Int("emails_checked", stats.EmailsChecked),
		slog.Int("breaches_found", stats.BreachesFound),
		slog.Int("alerts_created", stats.AlertsCreated),
		slog.Int("errors", stats.Errors),
	)
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

// workerMetricsMux はワーカーモード用の /health と /metrics だけを公開するmuxを返す。
func workerMetricsMux(registry *prometheus.Registry, db *sql.DB) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
