package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the support pipeline.
type PipelineMetrics struct {
	requestsTotal   *prometheus.CounterVec
	crisisTotal     *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	crisisScore     prometheus.Histogram
	purgedRowsTotal *prometheus.CounterVec
	keyRotations    prometheus.Counter
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "globalmind",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total support requests processed",
		}, []string{"branch", "status"}),
		crisisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "globalmind",
			Subsystem: "pipeline",
			Name:      "crisis_total",
			Help:      "Total requests that crossed the crisis threshold",
		}, []string{"urgency", "region"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "globalmind",
			Subsystem: "pipeline",
			Name:      "request_latency_seconds",
			Help:      "End to end pipeline latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"branch"}),
		crisisScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "globalmind",
			Subsystem: "pipeline",
			Name:      "crisis_score",
			Help:      "Distribution of crisis risk scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		purgedRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "globalmind",
			Subsystem: "privacy",
			Name:      "purged_rows_total",
			Help:      "Rows removed by retention purges",
		}, []string{"table"}),
		keyRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "globalmind",
			Subsystem: "privacy",
			Name:      "key_rotations_total",
			Help:      "Total encryption key rotations",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.crisisTotal, m.requestLatency, m.crisisScore, m.purgedRowsTotal, m.keyRotations)
	return m
}

func (m *PipelineMetrics) ObserveRequest(branch, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(branch, status).Inc()
	m.requestLatency.WithLabelValues(branch).Observe(seconds)
}

func (m *PipelineMetrics) ObserveCrisis(urgency, region string) {
	if m == nil {
		return
	}
	m.crisisTotal.WithLabelValues(urgency, region).Inc()
}

func (m *PipelineMetrics) ObserveScore(score float64) {
	if m == nil {
		return
	}
	m.crisisScore.Observe(score)
}

func (m *PipelineMetrics) ObservePurgedRows(table string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.purgedRowsTotal.WithLabelValues(table).Add(float64(rows))
}

func (m *PipelineMetrics) ObserveKeyRotation() {
	if m == nil {
		return
	}
	m.keyRotations.Inc()
}
