package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingestion kinds.
const (
	KindUpcoming = "upcoming"
	KindPast     = "past"
)

// Batch outcomes.
const (
	OutcomeOK               = "ok"
	OutcomeMalformed        = "malformed"
	OutcomeModelUnavailable = "model_unavailable"
	OutcomeError            = "error"
)

// Row results.
const (
	RowCreated = "created"
	RowSkipped = "skipped"
)

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	batches        *prometheus.CounterVec
	rows           *prometheus.CounterVec
	scorerReady    prometheus.Gauge
	scoringLatency prometheus.Histogram
}

// New registers the instruments on registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optometry_ingest_batches_total",
			Help: "CSV upload batches by kind and outcome.",
		}, []string{"kind", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optometry_ingest_rows_total",
			Help: "Ingested rows by kind and result.",
		}, []string{"kind", "result"}),
		scorerReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optometry_scorer_ready",
			Help: "1 when the fitted models are loaded, 0 when running degraded.",
		}),
		scoringLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optometry_scoring_duration_seconds",
			Help:    "Latency of a single scoring call.",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
	}
	registerer.MustRegister(m.batches, m.rows, m.scorerReady, m.scoringLatency)
	return m
}

// Batch records the outcome of one upload.
func (m *Metrics) Batch(kind, outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(kind, outcome).Inc()
}

// Rows adds n rows with the given result.
func (m *Metrics) Rows(kind, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(kind, result).Add(float64(n))
}

// ScorerReady sets the readiness gauge.
func (m *Metrics) ScorerReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.scorerReady.Set(1)
		return
	}
	m.scorerReady.Set(0)
}

// ObserveScoring records the duration of a scoring call started at start.
func (m *Metrics) ObserveScoring(start time.Time) {
	if m == nil {
		return
	}
	m.scoringLatency.Observe(time.Since(start).Seconds())
}
