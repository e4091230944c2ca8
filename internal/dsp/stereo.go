package dsp

import "math"

// MuxMode selects how the Multiplexer treats the discriminator output.
type MuxMode int

const (
	// MuxPassthrough decimates by the rate ratio without filtering.
	MuxPassthrough MuxMode = iota
	// MuxMono low-pass filters and resamples to one channel.
	MuxMono
	// MuxStereo separates L+R and L-R using the 19 kHz pilot and emits
	// interleaved left/right pairs.
	MuxStereo
)

// Band edges of the stereo multiplex, in Hz.
const (
	monoCutoff  = 16_000
	pilotLow    = 18_000
	pilotHigh   = 20_000
	stereoLow   = 21_000
	stereoHigh  = 55_000
	pilotFreqHz = 19_000
)

// Multiplexer decodes the FM multiplex signal and resamples it to the
// output rate with a fractional accumulator. It is stateful and must see
// the discriminator output in order.
type Multiplexer struct {
	mode       MuxMode
	slow, fast int
	acc        int

	// first stage, one sample per input
	raw *History
	// second stage, filtered again at each output
	mono, diff *History

	lp, pilot, stereo []float32

	sinW, cosW float32
	prevPilot  float32
}

// NewMultiplexer creates a decoder that turns rateIn samples into rateOut
// samples per channel. size is the history length of the filters and must
// be even. A zero rateOut keeps the input rate.
func NewMultiplexer(mode MuxMode, rateIn, rateOut, size int) *Multiplexer {
	if rateOut == 0 {
		rateOut = rateIn
	}
	m := &Multiplexer{mode: mode, slow: rateOut, fast: rateIn}
	if mode == MuxPassthrough {
		return m
	}

	rate := float64(rateIn)
	m.lp = Half(DesignFIRLowPass(size, monoCutoff/rate))
	m.raw = NewHistory(size)
	if mode == MuxStereo {
		m.pilot = Half(DesignFIRBandPass(size, pilotLow/rate, pilotHigh/rate))
		m.stereo = Half(DesignFIRBandPass(size, stereoLow/rate, stereoHigh/rate))
		m.mono = NewHistory(size)
		m.diff = NewHistory(size)
		w := 2 * math.Pi * pilotFreqHz / rate
		m.sinW = float32(math.Sin(w))
		m.cosW = float32(math.Cos(w))
	}
	return m
}

// Channels returns the number of interleaved output channels.
func (m *Multiplexer) Channels() int {
	if m.mode == MuxStereo {
		return 2
	}
	return 1
}

// MaxOutput returns the largest number of values Process can produce from
// n input samples.
func (m *Multiplexer) MaxOutput(n int) int {
	return m.Channels() * (n*m.slow/m.fast + 1)
}

// fire advances the resampling accumulator and reports whether an output
// sample is due.
func (m *Multiplexer) fire() bool {
	m.acc += m.slow
	if m.acc >= m.fast {
		m.acc -= m.fast
		return true
	}
	return false
}

// Process decodes src and appends the output to dst[:0]. dst may alias src
// except in stereo mode, where output pairs can overtake the input.
func (m *Multiplexer) Process(dst, src []float32) []float32 {
	dst = dst[:0]
	switch m.mode {
	case MuxPassthrough:
		for _, v := range src {
			if m.fire() {
				dst = append(dst, v)
			}
		}
	case MuxMono:
		for _, v := range src {
			m.raw.Push(v)
			if m.fire() {
				dst = append(dst, m.raw.PairSum(m.lp))
			}
		}
	case MuxStereo:
		for _, v := range src {
			m.raw.Push(v)
			vm, vp, vs := m.raw.PairSum3(m.lp, m.pilot, m.stereo)
			m.mono.Push(vm)
			// sin(2*phase) of the pilot regenerates the 38 kHz carrier.
			m.diff.Push(vs * sin2atan2(vp*m.sinW, vp*m.cosW-m.prevPilot))
			m.prevPilot = vp

			if m.fire() {
				sum := m.mono.PairSum(m.lp)
				dif := m.diff.PairSum(m.lp)
				dst = append(dst, sum+dif, sum-dif)
			}
		}
	}
	return dst
}

// sin2atan2 returns sin(2*atan2(y, x)) as 2z/(1+z*z) with z = y/x.
func sin2atan2(x, y float32) float32 {
	if x == 0 {
		return 0
	}
	z := y / x
	return (z + z) / (1 + z*z)
}

// Reset clears the filter histories and the accumulator.
func (m *Multiplexer) Reset() {
	m.acc = 0
	m.prevPilot = 0
	for _, h := range []*History{m.raw, m.mono, m.diff} {
		if h != nil {
			h.Reset()
		}
	}
}
