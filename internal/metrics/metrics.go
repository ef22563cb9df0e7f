// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスとミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(method, result string)
	RecordRegistration()
	RecordHashLatency(op string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordRateLimited(route string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins        *prometheus.CounterVec
	registrations prometheus.Counter
	hashLatency   *prometheus.HistogramVec
	httpStatus    *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharediary_login_total",
			Help: "ログイン方式・結果別のログイン試行数",
		}, []string{"method", "result"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sharediary_registrations_total",
			Help: "メールアドレスによる新規登録数",
		}),
		hashLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sharediary_password_hash_seconds",
			Help:    "bcryptのハッシュ・検証にかかった時間（ワーカー待ちを含む）",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharediary_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharediary_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.hashLatency,
		c.httpStatus,
		c.rateLimited,
	)

	return c
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordRegistration は新規登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordHashLatency はパスワードのハッシュ・検証時間を記録する。opは"hash"または"verify"。
func (c *Collector) RecordHashLatency(op string, duration time.Duration) {
	c.hashLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLogin(string, string)              {}
func (Nop) RecordRegistration()                     {}
func (Nop) RecordHashLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                    {}
func (Nop) RecordRateLimited(string)                {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
