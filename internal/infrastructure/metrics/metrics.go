package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics auto-find 流程的 Prometheus 指標，nil 接收者時所有方法皆為 no-op
type Metrics struct {
	jobsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	dedupeMatches  *prometheus.CounterVec
	sourcesFetched *prometheus.CounterVec
	sourceErrors   *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	jobRetries     prometheus.Counter
	prunedLogs     prometheus.Counter
}

// New 建立並註冊指標
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autofind",
			Name:      "jobs_total",
			Help:      "Auto-find jobs by terminal outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autofind",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		dedupeMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autofind",
			Name:      "dedupe_matches_total",
			Help:      "Duplicate matches by match type.",
		}, []string{"match_type"}),
		sourcesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autofind",
			Name:      "sources_fetched_total",
			Help:      "Trusted sources fetched per site.",
		}, []string{"site"}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autofind",
			Name:      "source_errors_total",
			Help:      "Failed source fetches per site.",
		}, []string{"site"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autofind",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the queue.",
		}),
		jobRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autofind",
			Name:      "job_retries_total",
			Help:      "Jobs re-enqueued after a failed attempt.",
		}),
		prunedLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autofind",
			Name:      "execution_logs_pruned_total",
			Help:      "Execution log rows removed by retention.",
		}),
	}

	reg.MustRegister(
		m.jobsTotal,
		m.stageDuration,
		m.dedupeMatches,
		m.sourcesFetched,
		m.sourceErrors,
		m.queueDepth,
		m.jobRetries,
		m.prunedLogs,
	)
	return m
}

// JobFinished 記錄任務結果（completed / duplicate / failed）
func (m *Metrics) JobFinished(outcome string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(outcome).Inc()
}

// StageObserved 記錄階段耗時
func (m *Metrics) StageObserved(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// DedupeMatched 記錄重複命中類型
func (m *Metrics) DedupeMatched(matchType string) {
	if m == nil {
		return
	}
	m.dedupeMatches.WithLabelValues(matchType).Inc()
}

// SourcesFetched 記錄站點取得的來源數
func (m *Metrics) SourcesFetched(site string, n int) {
	if m == nil {
		return
	}
	m.sourcesFetched.WithLabelValues(site).Add(float64(n))
}

// SourceFailed 記錄站點擷取失敗
func (m *Metrics) SourceFailed(site string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(site).Inc()
}

// SetQueueDepth 更新佇列長度
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// JobRetried 任務重新排入佇列
func (m *Metrics) JobRetried() {
	if m == nil {
		return
	}
	m.jobRetries.Inc()
}

// LogsPruned 記錄清除的執行紀錄數
func (m *Metrics) LogsPruned(n int64) {
	if m == nil {
		return
	}
	m.prunedLogs.Add(float64(n))
}
