// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、セッション掃除ジョブ、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordRegister(result string)
	RecordLogin(result string)
	RecordLogout()
	RecordSessionCheck(state string)
	RecordSessionsSwept(count int64)
	RecordStoreError(op string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registerTotal  *prometheus.CounterVec
	loginTotal     *prometheus.CounterVec
	logoutTotal    prometheus.Counter
	sessionChecks  *prometheus.CounterVec
	sessionsSwept  prometheus.Counter
	storeErrors    *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogcore_register_total",
			Help: "ユーザー登録の結果別件数",
		}, []string{"result"}),
		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogcore_login_total",
			Help: "ログインの結果別件数",
		}, []string{"result"}),
		logoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogcore_logout_total",
			Help: "ログアウトの合計数",
		}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogcore_session_check_total",
			Help: "ログイン状態確認の状態別件数",
		}, []string{"state"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogcore_sessions_swept_total",
			Help: "掃除ジョブで削除された期限切れセッションの合計数",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogcore_store_errors_total",
			Help: "ストア操作の失敗件数",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogcore_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogcore_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.registerTotal,
		c.loginTotal,
		c.logoutTotal,
		c.sessionChecks,
		c.sessionsSwept,
		c.storeErrors,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordRegister はユーザー登録の結果を記録する。
func (c *Collector) RecordRegister(result string) {
	c.registerTotal.WithLabelValues(result).Inc()
}

// RecordLogin はログインの結果を記録する。
// 外部向けエラーを統一している場合も、ここでは内部の区別を保持する。
func (c *Collector) RecordLogin(result string) {
	c.loginTotal.WithLabelValues(result).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logoutTotal.Inc()
}

// RecordSessionCheck はログイン状態確認の結果状態を記録する。
func (c *Collector) RecordSessionCheck(state string) {
	c.sessionChecks.WithLabelValues(state).Inc()
}

// RecordSessionsSwept は掃除ジョブで削除したセッション数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordStoreError はストア操作の失敗を記録する。
func (c *Collector) RecordStoreError(op string) {
	c.storeErrors.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成やテストで使う。
type Nop struct{}

func (Nop) RecordRegister(string) {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordLogout() {}
func (Nop) RecordSessionCheck(string) {}
func (Nop) RecordSessionsSwept(int64) {}
func (Nop) RecordStoreError(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
