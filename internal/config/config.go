// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// HIBP（漏洩検索サービス）
	HIBPAPIKey      string
	HIBPUserAgent   string
	HIBPTimeout     time.Duration
	HIBPMinInterval time.Duration // 連続呼び出し間の最低間隔（プロセス全体で共有）

	// Simulated data
	UseSimulatedData bool

	// Scan
	MonitorEnabled bool
	ScanInterval   time.Duration
	ScanPollSlice  time.Duration // 停止要求の確認間隔（スリープの分割単位）

	// SMTP（アラート通知）
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	AlertEmailFrom string

	// Retention
	CheckRetentionDays int

	// Rate Limit
	RateLimitGeneral int // API全般 req/min/user
	RateLimitCheck   int // 漏洩チェック req/min/user

	// Auth
	AuthStaticTokens string // "token:user_id:email[:display_name]" のカンマ区切り

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// HIBP_API_KEYは意図的に必須としない: 未設定の場合はシミュレーションデータに
// フォールバックし、監視ループ自体は止めない。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.HIBPAPIKey = strings.TrimSpace(os.Getenv("HIBP_API_KEY"))
	cfg.HIBPUserAgent = getEnvString("HIBP_USER_AGENT", "SentinelX/1.0 Breach Monitor")
	cfg.HIBPTimeout = getEnvDuration("HIBP_TIMEOUT", 10*time.Second)
	cfg.HIBPMinInterval = getEnvDuration("HIBP_MIN_INTERVAL", 1500*time.Millisecond)

	cfg.UseSimulatedData = getEnvBool("USE_SIMULATED_DATA", cfg.HIBPAPIKey == "")

	cfg.MonitorEnabled = getEnvBool("MONITOR_ENABLED", true)
	cfg.ScanInterval = getEnvDuration("SCAN_INTERVAL", 3*time.Hour)
	cfg.ScanPollSlice = getEnvDuration("SCAN_POLL_SLICE", 30*time.Second)

	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.AlertEmailFrom = getEnvString("ALERT_EMAIL_FROM", "")

	cfg.CheckRetentionDays = getEnvInt("CHECK_RETENTION_DAYS", 90)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCheck = getEnvInt("RATE_LIMIT_CHECK", 10)

	cfg.AuthStaticTokens = getEnvString("AUTH_STATIC_TOKENS", "")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
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

func getEnvBool(key string, defaultVal bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
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
