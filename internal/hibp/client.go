// Package hibp はHave I Been Pwned APIによるライブ漏洩検索機能を提供する。
// レート制限付きクライアントと、HTTP結果の型付き分類を含む。
package hibp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/sentinelx/internal/breach"
	"github.com/hitoshi/sentinelx/internal/model"
)

// defaultEndpoint はHIBP breachedaccount APIのエンドポイント。
const defaultEndpoint = "https://haveibeenpwned.com/api/v3/breachedaccount"

// LookupStatus は漏洩検索呼び出しの結果分類を表す。
type LookupStatus int

const (
	// StatusBreaches は漏洩レコードが見つかったことを示す。
	StatusBreaches LookupStatus = iota
	// StatusNoBreach は漏洩が見つからなかったことを示す（404）。
	StatusNoBreach
	// StatusRateLimited はレート制限超過を示す（429）。
	StatusRateLimited
	// StatusUnauthorized はAPIキーが無効であることを示す（401）。
	// アドレス単位ではなくシステム全体の問題であるため、呼び出し元は区別してログする。
	StatusUnauthorized
	// StatusTimeout はリクエストタイムアウトを示す。
	StatusTimeout
	// StatusNetworkError はその他のトランスポート障害を示す。
	StatusNetworkError
	// StatusNotConfigured はAPIキー未設定を示す。
	StatusNotConfigured
)

// String はステータスのログ表示用文字列を返す。
func (s LookupStatus) String() string {
	switch s {
	case StatusBreaches:
		return "breaches"
	case StatusNoBreach:
		return "no_breach"
	case StatusRateLimited:
		return "rate_limited"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusTimeout:
		return "timeout"
	case StatusNetworkError:
		return "network_error"
	case StatusNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// LookupResult は漏洩検索の型付き結果を表す。
type LookupResult struct {
	Status   LookupStatus
	Breaches []model.BreachRecord // StatusBreachesの場合のみ
	// RetryAfter はStatusRateLimitedの場合にサービスが提示した待機時間。
	RetryAfter time.Duration
	// Detail はStatusNetworkErrorの場合の障害内容。
	Detail string
}

// Transient は次のスキャンサイクルでの再試行が妥当な一時的障害かを返す。
func (r *LookupResult) Transient() bool {
	switch r.Status {
	case StatusRateLimited, StatusTimeout, StatusNetworkError:
		return true
	default:
		return false
	}
}

// ClientConfig はClientの設定パラメータ。
type ClientConfig struct {
	// APIKey はHIBPのAPIキー。空の場合、全検索はStatusNotConfiguredを返す。
	APIKey string
	// UserAgent はHIBPが要求するUser-Agentヘッダ値。
	UserAgent string
	// MinInterval は連続呼び出し間の最低間隔（デフォルト: 1.5秒）。
	MinInterval time.Duration
}

// Client はレート制限付きのHIBP APIクライアント。
// 呼び出し前にThrottleで最低間隔の経過を待ち、
// HTTP結果をLookupResultの型付き分類に変換する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     ClientConfig
	throttle   *Throttle
	normalizer *breach.Normalizer
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// MinIntervalが0以下の場合はデフォルト値1.5秒を使用する。
func NewClient(httpClient *http.Client, normalizer *breach.Normalizer, logger *slog.Logger, config ClientConfig) *Client {
	if config.MinInterval <= 0 {
		config.MinInterval = 1500 * time.Millisecond
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
		throttle:   NewThrottle(config.MinInterval),
		normalizer: breachNormalizerOrDefault(normalizer),
		endpoint:   defaultEndpoint,
	}
}

func breachNormalizerOrDefault(n *breach.Normalizer) *breach.Normalizer {
	if n == nil {
		return breach.NewNormalizer()
	}
	return n
}

// Lookup は指定アドレスの漏洩レコードを検索する。
// 前回の呼び出しから最低間隔が経過するまでブロックしてから発行する。
// 結果は常にLookupResultの型付き分類で返し、
// エラーを返すのはコンテキストキャンセルの場合のみ。
func (c *Client) Lookup(ctx context.Context, email string) (*LookupResult, error) {
	if c.config.APIKey == "" {
		return &LookupResult{Status: StatusNotConfigured}, nil
	}

	// レート制限: プロセス全体で最低間隔を強制
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レート制限待機が中断されました: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s?truncateResponse=false", c.endpoint, url.PathEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("hibp-api-key", c.config.APIKey)
	req.Header.Set("user-agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyTransportError(ctx, email, err), nil
	}
	defer resp.Body.Close()

	return c.classifyResponse(email, resp)
}

// classifyTransportError はトランスポート障害をタイムアウトとその他に分類する。
func (c *Client) classifyTransportError(ctx context.Context, email string, err error) *LookupResult {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.logger.Error("HIBP検索がタイムアウトしました",
			slog.String("email", email),
		)
		return &LookupResult{Status: StatusTimeout}
	}

	c.logger.Error("HIBP検索でネットワークエラーが発生しました",
		slog.String("email", email),
		slog.String("error", err.Error()),
	)
	return &LookupResult{Status: StatusNetworkError, Detail: err.Error()}
}

// classifyResponse はHTTPレスポンスをLookupResultの型付き分類に変換する。
// 404はNoBreach、429はRetry-Afterヒント付きのRateLimited、401はUnauthorized、
// 200は各レコードをNormalizerに通した上でBreachesとなる。
func (c *Client) classifyResponse(email string, resp *http.Response) (*LookupResult, error) {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Info("HIBP検索: 漏洩は見つかりませんでした",
			slog.String("email", email),
		)
		return &LookupResult{Status: StatusNoBreach}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn("HIBP検索がレート制限されました",
			slog.String("email", email),
			slog.Duration("retry_after", retryAfter),
		)
		return &LookupResult{Status: StatusRateLimited, RetryAfter: retryAfter}, nil

	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.Error("HIBP APIキーが無効です（401 Unauthorized）")
		return &LookupResult{Status: StatusUnauthorized}, nil

	case resp.StatusCode != http.StatusOK:
		c.logger.Error("HIBP検索が予期しないステータスを返しました",
			slog.String("email", email),
			slog.Int("http_status", resp.StatusCode),
		)
		return &LookupResult{
			Status: StatusNetworkError,
			Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("HIBPレスポンスの読み取りに失敗しました",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return &LookupResult{Status: StatusNetworkError, Detail: err.Error()}, nil
	}

	var raws []breach.RawBreach
	if err := json.Unmarshal(body, &raws); err != nil {
		c.logger.Error("HIBPレスポンスのパースに失敗しました",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return &LookupResult{Status: StatusNetworkError, Detail: err.Error()}, nil
	}

	records := c.normalizer.NormalizeAll(raws)
	if len(records) == 0 {
		return &LookupResult{Status: StatusNoBreach}, nil
	}

	c.logger.Info("HIBP検索: 漏洩が見つかりました",
		slog.String("email", email),
		slog.Int("breach_count", len(records)),
	)
	return &LookupResult{Status: StatusBreaches, Breaches: records}, nil
}

// parseRetryAfter はRetry-Afterヘッダを待機時間に変換する。
// 欠落または不正な場合はデフォルト2秒を返す。
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 2 * time.Second
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 2 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
