package dsp

import "math"

// Deemphasis implements a first-order low-pass filter for FM de-emphasis,
// with independent state for each interleaved channel.
type Deemphasis struct {
	lambda float32
	prev   []float32
}

// NewDeemphasis creates a new de-emphasis filter.
// sampleRate is the audio sample rate.
// tau is the time constant (e.g., 50e-6 for Europe, 75e-6 for US); zero
// disables the filter.
func NewDeemphasis(sampleRate int, tau float64, channels int) *Deemphasis {
	return NewDeemphasisLambda(Lambda(sampleRate, tau), channels)
}

// NewDeemphasisLambda creates a filter from a precomputed pole.
func NewDeemphasisLambda(lambda float64, channels int) *Deemphasis {
	return &Deemphasis{lambda: float32(lambda), prev: make([]float32, channels)}
}

// Lambda returns the pole exp(-1/(sampleRate*tau)), or zero when tau is zero.
func Lambda(sampleRate int, tau float64) float64 {
	if tau == 0 {
		return 0
	}
	return math.Exp(-1.0 / (float64(sampleRate) * tau))
}

// Filter applies the de-emphasis filter to a single sample of channel ch.
func (d *Deemphasis) Filter(ch int, x float32) float32 {
	y := x + d.lambda*(d.prev[ch]-x)
	d.prev[ch] = y
	return y
}

// Process filters interleaved samples in place.
func (d *Deemphasis) Process(samples []float32) {
	if d.lambda == 0 {
		return
	}
	channels := len(d.prev)
	for i := range samples {
		samples[i] = d.Filter(i%channels, samples[i])
	}
}

// Reset clears the filter memory.
func (d *Deemphasis) Reset() {
	clear(d.prev)
}
