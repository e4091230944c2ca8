package dsp

import (
	"math"
	"testing"
)

const float32EqualityThreshold = 1e-6

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) <= float32EqualityThreshold
}

// TestDesignFIRLowPass checks the properties of the generated FIR filter.
func TestDesignFIRLowPass(t *testing.T) {
	for _, numTaps := range []int{32, 90, 128} {
		taps := DesignFIRLowPass(numTaps, 0.0625)

		if len(taps) != numTaps {
			t.Fatalf("Expected %d taps, but got %d", numTaps, len(taps))
		}

		// 1. Check for symmetry (property of linear-phase FIR filters)
		for i := 0; i < numTaps/2; i++ {
			if taps[i] != taps[numTaps-1-i] {
				t.Errorf("Filter is not symmetric. Tap %d (%f) != Tap %d (%f)", i, taps[i], numTaps-1-i, taps[numTaps-1-i])
			}
		}

		// 2. The taps are not normalized, but the DC gain stays close to 1.
		var sum float64
		for _, tap := range taps {
			sum += float64(tap)
		}
		if math.Abs(sum-1) > 0.01 {
			t.Errorf("%d taps: expected DC gain near 1.0, but got %f", numTaps, sum)
		}
	}
}

func TestDesignFIRBandPass(t *testing.T) {
	const rate = 192000.0
	taps := DesignFIRBandPass(90, 18000/rate, 20000/rate)
	for i := range taps {
		if taps[i] != taps[len(taps)-1-i] {
			t.Fatalf("band-pass not symmetric at tap %d", i)
		}
	}

	gain := func(f float64) float64 {
		var re, im float64
		for n, tap := range taps {
			w := 2 * math.Pi * f / rate * float64(n)
			re += float64(tap) * math.Cos(w)
			im -= float64(tap) * math.Sin(w)
		}
		return math.Hypot(re, im)
	}
	if g := gain(19000); g < 0.4 {
		t.Errorf("expected pilot passband gain, got %f", g)
	}
	if g := gain(0); g > 0.05 {
		t.Errorf("expected DC rejection, got %f", g)
	}
}

func TestHalf(t *testing.T) {
	taps := DesignFIRLowPass(90, 0.1)
	if got := len(Half(taps)); got != 45 {
		t.Errorf("expected half table of 45, got %d", got)
	}
}
