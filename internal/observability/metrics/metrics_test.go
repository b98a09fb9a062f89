package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRows(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)

	m.ObserveRows("imported", 500)
	m.ObserveRows("rejected", 3)
	m.ObserveRows("imported", 0) // ignored

	if got := testutil.ToFloat64(m.rowsTotal.WithLabelValues("imported")); got != 500 {
		t.Fatalf("imported rows = %v, want 500", got)
	}
	if got := testutil.ToFloat64(m.rowsTotal.WithLabelValues("rejected")); got != 3 {
		t.Fatalf("rejected rows = %v, want 3", got)
	}
}

func TestObserveBatchAndRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)

	m.RunStarted()
	m.ObserveBatch("committed")
	m.ObserveBatch("fallback")
	m.RunFinished(1.5)

	if got := testutil.ToFloat64(m.batchesTotal.WithLabelValues("fallback")); got != 1 {
		t.Fatalf("fallback batches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeImports); got != 0 {
		t.Fatalf("active runs = %v, want 0", got)
	}
}

func TestNilReceiverSafe(t *testing.T) {
	var m *ImportMetrics
	m.ObserveRows("imported", 1)
	m.ObserveBatch("committed")
	m.RunStarted()
	m.RunFinished(0)
}
