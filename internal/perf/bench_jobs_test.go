package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/samudra-retail/samudra-retail/internal/jobs"
)

func TestBackgroundJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Notification dispatches are small and frequent.
	for i := 0; i < 60; i++ {
		tracker := metrics.Track("notification_dispatch")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending dispatch tracker: %v", err)
		}
	}

	// The nightly drift scan is slower but still well within its budget.
	for i := 0; i < 5; i++ {
		tracker := metrics.Track("ledger_drift_scan")
		time.Sleep(40 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending drift tracker: %v", err)
		}
	}

	// Inject a couple of failures to ensure the failure counter moves.
	for i := 0; i < 3; i++ {
		tracker := metrics.Track("notification_dispatch")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(errors.New("redis timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "samudra_jobs_total", map[string]string{"job": "notification_dispatch", "status": "success"})
	failure := metricValue(t, families, "samudra_jobs_total", map[string]string{"job": "notification_dispatch", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no dispatch executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("dispatch success ratio too low: %f", ratio)
	}

	driftDuration := histogramMean(t, families, "samudra_job_duration_seconds", map[string]string{"job": "ledger_drift_scan"})
	if driftDuration > 2.0 {
		t.Fatalf("drift scan duration above budget: %f", driftDuration)
	}

	dispatchDuration := histogramMean(t, families, "samudra_job_duration_seconds", map[string]string{"job": "notification_dispatch"})
	if dispatchDuration > 0.5 {
		t.Fatalf("dispatch duration above budget: %f", dispatchDuration)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
