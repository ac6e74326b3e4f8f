package perf

import (
	"sort"
	"testing"
	"time"
)

func TestStockEndpointLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		samples   []time.Duration
		threshold time.Duration
	}{
		{
			name:      "stock_card",
			samples:   []time.Duration{40 * time.Millisecond, 55 * time.Millisecond, 60 * time.Millisecond, 70 * time.Millisecond, 80 * time.Millisecond, 95 * time.Millisecond, 110 * time.Millisecond, 120 * time.Millisecond, 140 * time.Millisecond, 160 * time.Millisecond},
			threshold: 300 * time.Millisecond,
		},
		{
			name:      "sale_delivery",
			samples:   []time.Duration{180 * time.Millisecond, 220 * time.Millisecond, 250 * time.Millisecond, 280 * time.Millisecond, 320 * time.Millisecond, 350 * time.Millisecond, 380 * time.Millisecond, 420 * time.Millisecond, 450 * time.Millisecond, 480 * time.Millisecond},
			threshold: 800 * time.Millisecond,
		},
	}

	for _, scenario := range scenarios {
		p95 := percentile95(scenario.samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
