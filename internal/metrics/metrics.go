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
// Blobストア、サービス層、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordBlobOperation(collection, op string, ok bool)
	RecordBlobLatency(collection, op string, duration time.Duration)
	RecordBlobBytesWritten(collection string, n int64)
	RecordAuthOutcome(action, outcome string)
	RecordAccessDecision(scope, decision string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	blobOps        *prometheus.CounterVec
	blobLatency    *prometheus.HistogramVec
	blobBytes      *prometheus.CounterVec
	authOutcomes   *prometheus.CounterVec
	accessDecision *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		blobOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileteluss_blob_operations_total",
			Help: "Blobストア操作の合計数（コレクション・操作・結果別）",
		}, []string{"collection", "op", "result"}),
		blobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fileteluss_blob_operation_seconds",
			Help:    "Blobストア操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection", "op"}),
		blobBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileteluss_blob_bytes_written_total",
			Help: "Blobストアに書き込まれたバイト数の合計",
		}, []string{"collection"}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileteluss_auth_outcomes_total",
			Help: "認証操作の結果別の合計数",
		}, []string{"action", "outcome"}),
		accessDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileteluss_access_decisions_total",
			Help: "アクセス判定の結果別の合計数",
		}, []string{"scope", "decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fileteluss_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.blobOps,
		c.blobLatency,
		c.blobBytes,
		c.authOutcomes,
		c.accessDecision,
		c.httpStatus,
	)

	return c
}

// RecordBlobOperation はBlobストア操作の成否を記録する。
func (c *Collector) RecordBlobOperation(collection, op string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.blobOps.WithLabelValues(collection, op, result).Inc()
}

// RecordBlobLatency はBlobストア操作のレイテンシを記録する。
func (c *Collector) RecordBlobLatency(collection, op string, duration time.Duration) {
	c.blobLatency.WithLabelValues(collection, op).Observe(duration.Seconds())
}

// RecordBlobBytesWritten は書き込まれたペイロードのバイト数を記録する。
func (c *Collector) RecordBlobBytesWritten(collection string, n int64) {
	c.blobBytes.WithLabelValues(collection).Add(float64(n))
}

// RecordAuthOutcome は認証操作（register/login/logout）の結果を記録する。
func (c *Collector) RecordAuthOutcome(action, outcome string) {
	c.authOutcomes.WithLabelValues(action, outcome).Inc()
}

// RecordAccessDecision はルート・機能のアクセス判定結果を記録する。
func (c *Collector) RecordAccessDecision(scope, decision string) {
	c.accessDecision.WithLabelValues(scope, decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordBlobOperation(string, string, bool)        {}
func (NopCollector) RecordBlobLatency(string, string, time.Duration) {}
func (NopCollector) RecordBlobBytesWritten(string, int64)            {}
func (NopCollector) RecordAuthOutcome(string, string)                {}
func (NopCollector) RecordAccessDecision(string, string)             {}
func (NopCollector) RecordHTTPStatus(int)                            {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
