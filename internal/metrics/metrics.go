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
// サービス層とワーカーから利用する。
type MetricsCollector interface {
	RecordClaim(kind string)
	RecordClaimConflict()
	RecordNotificationsFanned(count int)
	RecordPushDelivery()
	RecordPushFailure()
	RecordReconcileRun()
	RecordReconcileFailure()
	RecordReconcileLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	claims           *prometheus.CounterVec
	claimConflicts   prometheus.Counter
	notificationsFan prometheus.Counter
	pushDeliveries   prometheus.Counter
	pushFailures     prometheus.Counter
	reconcileRuns    prometheus.Counter
	reconcileFails   prometheus.Counter
	reconcileLatency prometheus.Histogram
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naarscars_claims_total",
			Help: "依頼種別ごとの引き受け成功の合計数",
		}, []string{"kind"}),
		claimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naarscars_claim_conflicts_total",
			Help: "引き受け競合（既に引き受け済み）の合計数",
		}),
		notificationsFan: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naarscars_notifications_fanned_out_total",
			Help: "ファンアウトで作成された通知の合計数",
		}),
		pushDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naarscars_push_deliveries_total",
			Help: "プッシュゲートウェイへの送出成功の合計数",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naarscars_push_failures_total",
			Help: "プッシュゲートウェイへの送出失敗の合計数",
		}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naarscars_reconcile_runs_total",
			Help: "バッジ再集計実行の合計数",
		}),
		reconcileFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naarscars_reconcile_failures_total",
			Help: "バッジ再集計失敗の合計数",
		}),
		reconcileLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "naarscars_reconcile_latency_seconds",
			Help:    "バッジ再集計1ユーザーあたりのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naarscars_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.claims,
		c.claimConflicts,
		c.notificationsFan,
		c.pushDeliveries,
		c.pushFailures,
		c.reconcileRuns,
		c.reconcileFails,
		c.reconcileLatency,
		c.httpStatus,
	)

	return c
}

// RecordClaim は引き受け成功を依頼種別ごとに記録する。
func (c *Collector) RecordClaim(kind string) {
	c.claims.WithLabelValues(kind).Inc()
}

// RecordClaimConflict は引き受け競合を記録する。
func (c *Collector) RecordClaimConflict() {
	c.claimConflicts.Inc()
}

// RecordNotificationsFanned はファンアウトで作成した通知数を記録する。
func (c *Collector) RecordNotificationsFanned(count int) {
	c.notificationsFan.Add(float64(count))
}

// RecordPushDelivery はプッシュ送出成功を記録する。
func (c *Collector) RecordPushDelivery() {
	c.pushDeliveries.Inc()
}

// RecordPushFailure はプッシュ送出失敗を記録する。
func (c *Collector) RecordPushFailure() {
	c.pushFailures.Inc()
}

// RecordReconcileRun はバッジ再集計の実行を記録する。
func (c *Collector) RecordReconcileRun() {
	c.reconcileRuns.Inc()
}

// RecordReconcileFailure はバッジ再集計の失敗を記録する。
func (c *Collector) RecordReconcileFailure() {
	c.reconcileFails.Inc()
}

// RecordReconcileLatency はバッジ再集計のレイテンシを記録する。
func (c *Collector) RecordReconcileLatency(duration time.Duration) {
	c.reconcileLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
