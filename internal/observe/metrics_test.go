package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValue returns the int64 sum of the data point carrying key=value, or
// of the first data point when key is empty.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestRecordDropped(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDropped(ctx, RingInput, 4096)
	m.RecordDropped(ctx, RingInput, 100)
	m.RecordDropped(ctx, RingOutput, 16384)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "fmplayer.ring.dropped", "ring", RingInput); got != 4196 {
		t.Errorf("input dropped = %d, want 4196", got)
	}
	if got := sumValue(t, rm, "fmplayer.ring.dropped", "ring", RingOutput); got != 16384 {
		t.Errorf("output dropped = %d, want 16384", got)
	}
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	counters := []struct {
		name string
		c    metric.Int64Counter
		add  int64
	}{
		{"fmplayer.demod.chunks", m.DemodChunks, 3},
		{"fmplayer.squelch.skips", m.SquelchSkips, 2},
		{"fmplayer.controller.hops", m.Hops, 1},
		{"fmplayer.audio.clipped", m.ClippedSamples, 17},
	}
	for _, tc := range counters {
		tc.c.Add(ctx, tc.add)
	}

	rm := collect(t, reader)
	for _, tc := range counters {
		if got := sumValue(t, rm, tc.name, "", ""); got != tc.add {
			t.Errorf("%s = %d, want %d", tc.name, got, tc.add)
		}
	}
}

func TestDemodDurationAndShift(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DemodDuration.Record(ctx, 0.004)
	m.DemodDuration.Record(ctx, 0.02)
	m.TimeShift.Record(ctx, 30)
	m.TimeShift.Record(ctx, 20)

	rm := collect(t, reader)
	met := findMetric(rm, "fmplayer.demod.duration")
	if met == nil {
		t.Fatal("histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("demod duration is not a populated histogram")
	}
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}

	met = findMetric(rm, "fmplayer.timeshift.shift")
	if met == nil {
		t.Fatal("gauge not found")
	}
	gauge, ok := met.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) == 0 {
		t.Fatal("time shift is not a populated gauge")
	}
	if got := gauge.DataPoints[0].Value; got != 20 {
		t.Errorf("gauge = %d, want the last value 20", got)
	}
}

func TestDiscard(t *testing.T) {
	m := Discard()
	m.RecordDropped(context.Background(), RingOutput, 1)
	m.Hops.Add(context.Background(), 1)
}

func TestHandler_ServesMetrics(t *testing.T) {
	srv := httptest.NewServer(NewHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/other")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestNewResource(t *testing.T) {
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=bench")
	res, err := newResource(context.Background(), "1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	set := res.Set()
	for key, want := range map[string]string{
		"service.name":           "go-fm-player",
		"service.version":        "1.2.3",
		"deployment.environment": "bench",
	} {
		v, ok := set.Value(attribute.Key(key))
		if !ok || v.AsString() != want {
			t.Errorf("%s = %q, want %q", key, v.AsString(), want)
		}
	}
}
