package dsp

const (
	// DecimationFactor is the rate reduction of the channel filter.
	DecimationFactor = 8
	// BlockFloats is the input granularity of Decimator.Process.
	BlockFloats = 64

	decimatorTaps  = 32
	decimatorHalf  = decimatorTaps / 2
	decimatorCarry = 2 * (decimatorTaps - DecimationFactor) // 24 complex samples
	warmupOutputs  = 3
)

// Decimator is the channel filter: a 32-tap symmetric low-pass FIR that
// keeps one complex sample in eight. It carries the last 24 complex input
// samples between calls, so consecutive blocks filter as one stream.
type Decimator struct {
	taps [decimatorHalf]float32
	tail [decimatorCarry]float32
}

// NewDecimator creates a decimator with a cutoff at 1/16 of the input rate.
func NewDecimator() *Decimator {
	d := &Decimator{}
	copy(d.taps[:], Half(DesignFIRLowPass(decimatorTaps, 0.5/DecimationFactor)))
	return d
}

// Taps returns the full symmetric coefficient table.
func (d *Decimator) Taps() []float32 {
	taps := make([]float32, decimatorTaps)
	for i, t := range d.taps {
		taps[i] = t
		taps[decimatorTaps-1-i] = t
	}
	return taps
}

// at reads float index k of the history tail followed by buf.
func (d *Decimator) at(buf []float32, k int) float32 {
	if k < decimatorCarry {
		return d.tail[k]
	}
	return buf[k-decimatorCarry]
}

// Process filters interleaved IQ floats in place and returns the
// decimated stream, which occupies the first len(buf)/8 values of buf.
// len(buf) must be a multiple of BlockFloats.
func (d *Decimator) Process(buf []float32) []float32 {
	fb := &d.taps
	var warm [2 * warmupOutputs]float32

	// The first outputs straddle the carried history.
	for m := 0; m < warmupOutputs; m++ {
		base := 2 * DecimationFactor * m
		var i, q float32
		for t := 0; t < decimatorHalf; t++ {
			a := base + 2*t
			b := base + 2*(decimatorTaps-1-t)
			i += (d.at(buf, a) + d.at(buf, b)) * fb[t]
			q += (d.at(buf, a+1) + d.at(buf, b+1)) * fb[t]
		}
		warm[2*m] = i
		warm[2*m+1] = q
	}

	copy(d.tail[:], buf[len(buf)-decimatorCarry:])

	// Outputs are written behind the read window, so the rest can run in place.
	out := len(buf) / DecimationFactor
	for j, i := 2*warmupOutputs, 0; j < out; i, j = i+2*DecimationFactor, j+2 {
		w := buf[i : i+2*decimatorTaps : i+2*decimatorTaps]
		var vi, vq float32
		for t := 0; t < decimatorHalf; t++ {
			a := 2 * t
			b := 2 * (decimatorTaps - 1 - t)
			vi += (w[a] + w[b]) * fb[t]
			vq += (w[a+1] + w[b+1]) * fb[t]
		}
		buf[j] = vi
		buf[j+1] = vq
	}

	copy(buf, warm[:])
	return buf[:out]
}

// Reset clears the carried history.
func (d *Decimator) Reset() {
	d.tail = [decimatorCarry]float32{}
}
