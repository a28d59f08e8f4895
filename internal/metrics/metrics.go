// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ytreply"

// Collector はPrometheusメトリクスを収集する実装。
// authstate.Observer、guard.DecisionRecorder、middleware.StatusObserverを満たす。
type Collector struct {
	reg prometheus.Registerer

	authInit        *prometheus.CounterVec
	sessionChange   *prometheus.CounterVec
	signOut         *prometheus.CounterVec
	guardDecision   *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	transcription   *prometheus.CounterVec
	transcribeTime  prometheus.Histogram
	sessionsExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		authInit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_state_initialize_total",
			Help:      "認証状態ストアの初回解決の結果別件数",
		}, []string{"result"}),
		sessionChange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_state_session_change_total",
			Help:      "適用されたセッション変更通知の件数",
		}, []string{"authenticated"}),
		signOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_state_sign_out_total",
			Help:      "サインアウトの結果別件数",
		}, []string{"result"}),
		guardDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "ルートガードの判定別件数",
		}, []string{"decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_status_total",
			Help:      "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		transcription: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_requests_total",
			Help:      "文字起こし依頼の結果別件数",
		}, []string{"result"}),
		transcribeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_request_seconds",
			Help:      "文字起こし依頼のリトライを含む所要時間（秒）",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "期限切れで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authInit,
		c.sessionChange,
		c.signOut,
		c.guardDecision,
		c.httpStatus,
		c.transcription,
		c.transcribeTime,
		c.sessionsExpired,
	)

	return c
}

// ObserveInitialize は認証状態ストアの初回解決を記録する。
func (c *Collector) ObserveInitialize(result string) {
	c.authInit.WithLabelValues(result).Inc()
}

// ObserveSessionChange はセッション変更通知の適用を記録する。
func (c *Collector) ObserveSessionChange(authenticated bool) {
	c.sessionChange.WithLabelValues(strconv.FormatBool(authenticated)).Inc()
}

// ObserveSignOut はサインアウトを記録する。
func (c *Collector) ObserveSignOut(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.signOut.WithLabelValues(result).Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecision.WithLabelValues(decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTranscription は文字起こし依頼の結果と所要時間を記録する。
func (c *Collector) RecordTranscription(err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.transcription.WithLabelValues(result).Inc()
	c.transcribeTime.Observe(duration.Seconds())
}

// RecordSessionsExpired は期限切れで削除したセッション数を記録する。
func (c *Collector) RecordSessionsExpired(count int) {
	c.sessionsExpired.Add(float64(count))
}

// RegisterStoreGauge は保持中の認証状態ストア数をゲージとして公開する。
func (c *Collector) RegisterStoreGauge(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "auth_state_stores",
		Help:      "保持中の認証状態ストア数",
	}, func() float64 { return float64(count()) }))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
