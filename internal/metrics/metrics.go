// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordScanCycle()
	RecordEmailChecked()
	RecordBreachesFound(count int)
	RecordAlertCreated()
	RecordNotificationSent()
	RecordCheckError()
	RecordLookupStatus(status string)
	RecordLookupLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scanCycles        prometheus.Counter
	emailsChecked     prometheus.Counter
	breachesFound     prometheus.Counter
	alertsCreated     prometheus.Counter
	notificationsSent prometheus.Counter
	checkErrors       prometheus.Counter
	lookupStatus      *prometheus.CounterVec
	lookupLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinelx_scan_cycles_total",
			Help: "フルスキャンサイクル実行の合計数",
		}),
		emailsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinelx_emails_checked_total",
			Help: "チェックした監視対象アドレスの合計数",
		}),
		breachesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinelx_breaches_found_total",
			Help: "検出した漏洩レコードの合計数",
		}),
		alertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinelx_alerts_created_total",
			Help: "作成・更新したアラートの合計数",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinelx_notifications_sent_total",
			Help: "送信に成功した通知の合計数",
		}),
		checkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinelx_check_errors_total",
			Help: "チェック失敗の合計数",
		}),
		lookupStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinelx_lookup_status_total",
			Help: "漏洩検索の結果分類別の合計数",
		}, []string{"status"}),
		lookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinelx_lookup_latency_seconds",
			Help:    "漏洩検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.scanCycles,
		c.emailsChecked,
		c.breachesFound,
		c.alertsCreated,
		c.notificationsSent,
		c.checkErrors,
		c.lookupStatus,
		c.lookupLatency,
	)

	return c
}

// RecordScanCycle はフルスキャンサイクルの実行を記録する。
func (c *Collector) RecordScanCycle() {
	c.scanCycles.Inc()
}

// RecordEmailChecked は監視対象アドレスのチェックを記録する。
func (c *Collector) RecordEmailChecked() {
	c.emailsChecked.Inc()
}

// RecordBreachesFound は検出した漏洩レコード数を記録する。
func (c *Collector) RecordBreachesFound(count int) {
	c.breachesFound.Add(float64(count))
}

// RecordAlertCreated はアラートの作成・更新を記録する。
func (c *Collector) RecordAlertCreated() {
	c.alertsCreated.Inc()
}

// RecordNotificationSent は通知の送信成功を記録する。
func (c *Collector) RecordNotificationSent() {
	c.notificationsSent.Inc()
}

// RecordCheckError はチェック失敗を記録する。
func (c *Collector) RecordCheckError() {
	c.checkErrors.Inc()
}

// RecordLookupStatus は漏洩検索の結果分類を記録する。
func (c *Collector) RecordLookupStatus(status string) {
	c.lookupStatus.WithLabelValues(status).Inc()
}

// RecordLookupLatency は漏洩検索のレイテンシを記録する。
func (c *Collector) RecordLookupLatency(duration time.Duration) {
	c.lookupLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector実装。テストで使用する。
type NopCollector struct{}

func (NopCollector) RecordScanCycle()                           {}
func (NopCollector) RecordEmailChecked()                        {}
func (NopCollector) RecordBreachesFound(count int)              {}
func (NopCollector) RecordAlertCreated()                        {}
func (NopCollector) RecordNotificationSent()                    {}
func (NopCollector) RecordCheckError()                          {}
func (NopCollector) RecordLookupStatus(status string)           {}
func (NopCollector) RecordLookupLatency(duration time.Duration) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
