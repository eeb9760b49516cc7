package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics records row outcomes and run durations for both ingestion pipelines.
type ImportMetrics struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	runs     *prometheus.CounterVec
}

// NewImportMetrics registers the import metrics on the provided registerer.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	if reg == nil {
		return &ImportMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "import_run_duration_seconds",
		Help:    "Duration of import runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pipeline"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Imported rows by outcome (created, updated, new, existing, error).",
	}, []string{"pipeline", "outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_runs_total",
		Help: "Finished import runs by final status.",
	}, []string{"pipeline", "status"})
	reg.MustRegister(duration, rows, runs)
	return &ImportMetrics{
		duration: duration,
		rows:     rows,
		runs:     runs,
	}
}

// ObserveRun records a finished run and its final status.
func (m *ImportMetrics) ObserveRun(pipeline, status string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	pipeline = normalizeLabel(pipeline)
	m.duration.WithLabelValues(pipeline).Observe(duration.Seconds())
	m.runs.WithLabelValues(pipeline, normalizeLabel(status)).Inc()
}

// AddRows increments the row counter for the outcome by n.
func (m *ImportMetrics) AddRows(pipeline, outcome string, n int) {
	if m == nil || m.rows == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(pipeline), normalizeLabel(outcome)).Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
