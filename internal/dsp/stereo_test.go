package dsp

import (
	"math"
	"testing"
)

const (
	testDemodRate = 192000
	testAudioRate = 48000
)

func TestHistory_Indexing(t *testing.T) {
	h := NewHistory(4)
	for v := 1; v <= 6; v++ {
		h.Push(float32(v))
	}
	// holds 3 4 5 6
	for k, want := range []float32{3, 4, 5, 6} {
		if got := h.Oldest(k); got != want {
			t.Errorf("Oldest(%d) = %v, want %v", k, got, want)
		}
	}
	for k, want := range []float32{6, 5, 4, 3} {
		if got := h.Newest(k); got != want {
			t.Errorf("Newest(%d) = %v, want %v", k, got, want)
		}
	}
	// (3+6)*1 + (4+5)*10
	if got := h.PairSum([]float32{1, 10}); got != 99 {
		t.Errorf("PairSum = %v, want 99", got)
	}
	a, b, c := h.PairSum3([]float32{1, 0}, []float32{0, 1}, []float32{1, 1})
	if a != 9 || b != 9 || c != 18 {
		t.Errorf("PairSum3 = %v %v %v", a, b, c)
	}
}

// impulseResponse pushes a unit impulse followed by zeros through a history
// twice the half table long and records the paired convolution after each push.
func impulseResponse(half []float32) []float32 {
	n := 2 * len(half)
	h := NewHistory(n)
	out := make([]float32, n)
	for i := range out {
		if i == 0 {
			h.Push(1)
		} else {
			h.Push(0)
		}
		out[i] = h.PairSum(half)
	}
	return out
}

func TestMultiplexer_FilterSymmetry(t *testing.T) {
	for _, size := range []int{90, 128} {
		m := NewMultiplexer(MuxStereo, testDemodRate, testAudioRate, size)
		for name, half := range map[string][]float32{"mono": m.lp, "pilot": m.pilot, "stereo": m.stereo} {
			resp := impulseResponse(half)
			for i := range resp {
				if resp[i] != resp[size-1-i] {
					t.Fatalf("%s/%d: response not mirrored at %d: %g vs %g", name, size, i, resp[i], resp[size-1-i])
				}
			}
			for i, c := range half {
				if resp[i] != c {
					t.Fatalf("%s/%d: response %d is %g, table has %g", name, size, i, resp[i], c)
				}
			}
		}
	}
}

func TestMultiplexer_MonoImpulse(t *testing.T) {
	const size = 90
	// Equal rates fire on every sample.
	m := NewMultiplexer(MuxMono, testDemodRate, testDemodRate, size)
	in := make([]float32, size)
	in[0] = 1
	out := m.Process(nil, in)
	if len(out) != size {
		t.Fatalf("expected %d outputs, got %d", size, len(out))
	}
	full := DesignFIRLowPass(size, monoCutoff/float64(testDemodRate))
	for i := range out {
		if out[i] != full[i] {
			t.Errorf("output %d: got %g, want tap %g", i, out[i], full[i])
		}
	}
}

func TestMultiplexer_PassthroughRate(t *testing.T) {
	// Discriminator output of a constant-frequency tone, rate matched 4:1.
	const numSamples = 16384
	iq := generateTestSignal(numSamples, 0.3)
	phase := NewDiscriminator().Process(make([]float32, numSamples), iq)

	m := NewMultiplexer(MuxPassthrough, testDemodRate, testAudioRate, 0)
	total := 0
	buf := make([]float32, m.MaxOutput(1000))
	for i := 0; i < numSamples; i += 1000 {
		end := min(i+1000, numSamples)
		out := m.Process(buf, phase[i:end])
		for _, v := range out {
			if !near(v, 0.3, atanTolerance) {
				t.Fatalf("passthrough altered sample value: %f", v)
			}
		}
		total += len(out)
	}
	want := numSamples * testAudioRate / testDemodRate
	if total < want-1 || total > want+1 {
		t.Errorf("expected %d±1 samples, got %d", want, total)
	}
}

// tone returns the amplitude of frequency f in x sampled at rate.
func tone(x []float32, f float64, rate int) float64 {
	var s, c float64
	for i, v := range x {
		w := 2 * math.Pi * f * float64(i) / float64(rate)
		s += float64(v) * math.Sin(w)
		c += float64(v) * math.Cos(w)
	}
	return 2 / float64(len(x)) * math.Hypot(s, c)
}

// stereoBaseband frequency modulates a stereo multiplex carrying a 1 kHz
// tone in the left channel only, with 75 kHz deviation.
func stereoBaseband(numSamples int) []float32 {
	iq := make([]float32, 2*numSamples)
	var phase float64
	for n := 0; n < numSamples; n++ {
		t := float64(n) / testDemodRate
		left := math.Sin(2 * math.Pi * 1000 * t)
		right := 0.0
		pilot := 2 * math.Pi * 19000 * t
		mpx := 0.9*((left+right)/2+(left-right)/2*math.Sin(2*pilot)) + 0.1*math.Sin(pilot)
		phase += 2 * math.Pi * 75000 * mpx / testDemodRate
		iq[2*n] = float32(math.Cos(phase))
		iq[2*n+1] = float32(math.Sin(phase))
	}
	return iq
}

func TestMultiplexer_StereoScenario(t *testing.T) {
	const numSamples = 57600 // 0.3 s
	iq := stereoBaseband(numSamples)

	disc := NewDiscriminator()
	mux := NewMultiplexer(MuxStereo, testDemodRate, testAudioRate, 90)
	deemph := NewDeemphasis(testAudioRate, 50e-6, 2)

	var audio []float32
	phase := make([]float32, 4096)
	out := make([]float32, mux.MaxOutput(4096))
	for i := 0; i < numSamples; i += 4096 {
		end := min(i+4096, numSamples)
		p := disc.Process(phase, iq[2*i:2*end])
		o := mux.Process(out, p)
		deemph.Process(o)
		audio = append(audio, o...)
	}

	if len(audio) != 2*numSamples*testAudioRate/testDemodRate {
		t.Fatalf("unexpected output length %d", len(audio))
	}

	// Split channels and skip the filter settling time.
	var left, right []float32
	for i := 4800; i < len(audio); i += 2 {
		left = append(left, audio[i])
		right = append(right, audio[i+1])
	}

	for name, ch := range map[string][]float32{"left": left, "right": right} {
		fundamental := tone(ch, 1000, testAudioRate)
		for _, f := range []float64{2000, 3000, 5000, 10000, 15000, 19000} {
			if other := tone(ch, f, testAudioRate); other > fundamental/10 {
				t.Errorf("%s: %g Hz component %f rivals 1 kHz component %f", name, f, other, fundamental)
			}
		}
	}

	l, r := tone(left, 1000, testAudioRate), tone(right, 1000, testAudioRate)
	if ratio := l / r; ratio < 2.5 || ratio > 3.5 {
		t.Errorf("expected left/right ratio near 3, got %f (left %f, right %f)", ratio, l, r)
	}
}

func TestMultiplexer_ResetMatchesFresh(t *testing.T) {
	in := make([]float32, 500)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.1))
	}
	m := NewMultiplexer(MuxStereo, testDemodRate, testAudioRate, 90)
	m.Process(make([]float32, m.MaxOutput(len(in))), in)
	m.Reset()
	got := m.Process(make([]float32, m.MaxOutput(len(in))), in)

	want := NewMultiplexer(MuxStereo, testDemodRate, testAudioRate, 90).Process(make([]float32, m.MaxOutput(len(in))), in)
	if len(got) != len(want) {
		t.Fatalf("length %d after reset, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("sample %d differs after reset", i)
		}
	}
}
