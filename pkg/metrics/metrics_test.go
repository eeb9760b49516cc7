package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestImportMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewImportMetrics(reg)
	metrics.ObserveRun("direct", "partial", 250*time.Millisecond)
	metrics.AddRows("direct", "created", 3)
	metrics.AddRows("direct", "error", 1)
	metrics.AddRows("direct", "updated", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "import_rows_total", map[string]string{"pipeline": "direct", "outcome": "created"}); err != nil {
		t.Fatalf("fetch created: %v", err)
	} else if got != 3 {
		t.Fatalf("expected created=3, got %f", got)
	}

	if _, err := fetchCounterValue(mfs, "import_rows_total", map[string]string{"pipeline": "direct", "outcome": "updated"}); err == nil {
		t.Fatal("zero additions should not create a series")
	}

	if got, err := fetchCounterValue(mfs, "import_runs_total", map[string]string{"pipeline": "direct", "status": "partial"}); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected runs=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "import_run_duration_seconds", map[string]string{"pipeline": "direct"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestReservationMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewReservationMetrics(reg)
	metrics.Inc("reserve", "ok")
	metrics.Inc("reserve", "ok")
	metrics.Inc("reserve", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "reservation_calls_total", map[string]string{"operation": "reserve", "outcome": "ok"}); err != nil {
		t.Fatalf("fetch ok: %v", err)
	} else if got != 2 {
		t.Fatalf("expected ok=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "reservation_calls_total", map[string]string{"operation": "reserve", "outcome": "unknown"}); err != nil {
		t.Fatalf("fetch unknown: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown=1, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var imports *ImportMetrics
	imports.ObserveRun("direct", "completed", time.Second)
	imports.AddRows("direct", "created", 1)

	var reservations *ReservationMetrics
	reservations.Inc("release", "ok")

	NewImportMetrics(nil).AddRows("staged", "new", 1)
	NewReservationMetrics(nil).Inc("reserve", "ok")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
