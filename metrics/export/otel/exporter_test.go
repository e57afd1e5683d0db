package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	sessionjwt "github.com/rkhaya/express-session-jwt"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessionjwt.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() sessionjwt.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessionjwt.MetricsSnapshot{
		Counters:   make(map[sessionjwt.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[sessionjwt.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReaderMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func findGauge(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
				return g.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterCollectsSnapshotValues(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{
		snapshot: sessionjwt.MetricsSnapshot{
			Counters: map[sessionjwt.MetricID]uint64{
				sessionjwt.MetricRotateReplay: 3,
			},
			Histograms: map[sessionjwt.MetricID][]uint64{
				sessionjwt.MetricRotateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("sessionjwt-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if v, ok := findSum(rm, "sessionjwt_rotate_replay_total"); !ok || v != 3 {
		t.Fatalf("expected rotate replay 3, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "sessionjwt_audit_dropped_total"); !ok || v != 1 {
		t.Fatalf("expected audit dropped 1, got %d (found=%v)", v, ok)
	}
	if v, ok := findGauge(rm, "sessionjwt_rotate_latency_seconds_count"); !ok || v != 8 {
		t.Fatalf("expected rotate latency count 8, got %d (found=%v)", v, ok)
	}
	if _, ok := findGauge(rm, "sessionjwt_validate_latency_seconds_count"); ok {
		t.Fatal("absent histogram must not be observed")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReaderMeter()

	if _, err := NewExporterFromSource(provider.Meter("t"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("t"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{
		snapshot: sessionjwt.MetricsSnapshot{
			Counters: map[sessionjwt.MetricID]uint64{sessionjwt.MetricLoginSuccess: 1},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("sessionjwt-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[sessionjwt.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
