// Package observe provides the receiver's OpenTelemetry metrics and the
// Prometheus endpoint they are scraped from.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider];
// [Discard] returns instruments that record nothing.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all receiver metrics.
const meterName = "go-fm-player"

// Ring names used as the "ring" attribute of [Metrics.DroppedBytes].
const (
	RingInput  = "input"
	RingOutput = "output"
	// RingPlayer is the sound card queue.
	RingPlayer = "player"
)

// Metrics holds the metric instruments of the receiver pipeline. All fields
// are safe for concurrent use.
type Metrics struct {
	// DroppedBytes counts bytes lost to ring overflow. Use with attribute:
	//   attribute.String("ring", RingInput|RingOutput|RingPlayer)
	DroppedBytes metric.Int64Counter

	// DemodChunks counts input chunks run through the DSP chain.
	DemodChunks metric.Int64Counter

	// DemodDuration tracks the DSP time per input chunk.
	DemodDuration metric.Float64Histogram

	// SquelchSkips counts chunks whose audio was dropped by the squelch.
	SquelchSkips metric.Int64Counter

	// Hops counts retunes to the next scan frequency.
	Hops metric.Int64Counter

	// ClippedSamples counts samples saturated by the quantizer.
	ClippedSamples metric.Int64Counter

	// TimeShift is the current playback distance behind live, in slots.
	TimeShift metric.Int64Gauge
}

// demodBuckets defines histogram bucket boundaries (in seconds) around the
// ~170 ms of audio carried by one input chunk.
var demodBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DroppedBytes, err = m.Int64Counter("fmplayer.ring.dropped",
		metric.WithDescription("Bytes discarded by ring buffer overflow."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.DemodChunks, err = m.Int64Counter("fmplayer.demod.chunks",
		metric.WithDescription("Input chunks demodulated."),
	); err != nil {
		return nil, err
	}
	if met.DemodDuration, err = m.Float64Histogram("fmplayer.demod.duration",
		metric.WithDescription("Processing time of one input chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(demodBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SquelchSkips, err = m.Int64Counter("fmplayer.squelch.skips",
		metric.WithDescription("Chunks skipped because the signal was below the squelch level."),
	); err != nil {
		return nil, err
	}
	if met.Hops, err = m.Int64Counter("fmplayer.controller.hops",
		metric.WithDescription("Retunes to the next scan frequency."),
	); err != nil {
		return nil, err
	}
	if met.ClippedSamples, err = m.Int64Counter("fmplayer.audio.clipped",
		metric.WithDescription("Audio samples saturated by quantization."),
	); err != nil {
		return nil, err
	}
	if met.TimeShift, err = m.Int64Gauge("fmplayer.timeshift.shift",
		metric.WithDescription("Playback distance behind live in output chunks."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns metrics backed by a no-op provider.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: failed to create no-op metrics: " + err.Error())
	}
	return m
}

// RecordDropped records bytes lost by the named ring.
func (m *Metrics) RecordDropped(ctx context.Context, ring string, n int) {
	m.DroppedBytes.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("ring", ring)),
	)
}
