// Package metrics exposes prometheus instruments for the ingestion
// pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ImportMetrics counts pipeline work: rows by outcome, batch commits and
// their fallbacks, and whole-run durations.
type ImportMetrics struct {
	rowsTotal      *prometheus.CounterVec
	batchesTotal   *prometheus.CounterVec
	activeImports  prometheus.Gauge
	importDuration prometheus.Histogram
}

func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactflow",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Rows processed by outcome",
		}, []string{"outcome"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contactflow",
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Batch commits by result",
		}, []string{"result"}),
		activeImports: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "contactflow",
			Subsystem: "import",
			Name:      "active_runs",
			Help:      "Import runs currently executing",
		}),
		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contactflow",
			Subsystem: "import",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one import run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.rowsTotal, m.batchesTotal, m.activeImports, m.importDuration)
	return m
}

// ObserveRows adds n rows with the given outcome ("imported", "rejected").
func (m *ImportMetrics) ObserveRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveBatch records one batch commit attempt ("committed", "fallback").
func (m *ImportMetrics) ObserveBatch(result string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(result).Inc()
}

// RunStarted marks an import run as active.
func (m *ImportMetrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeImports.Inc()
}

// RunFinished marks the run done and records its duration.
func (m *ImportMetrics) RunFinished(seconds float64) {
	if m == nil {
		return
	}
	m.activeImports.Dec()
	m.importDuration.Observe(seconds)
}
