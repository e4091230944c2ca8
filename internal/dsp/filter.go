// Package dsp implements the wideband FM demodulation chain: sample
// conversion, the decimating channel filter, the discriminator, the stereo
// multiplex decoder and the audio post-processing stages.
package dsp

import "math"

// DesignFIRBandPass creates a band-pass FIR filter using the windowed-sinc
// method. low and high are normalized to the sample rate (0..0.5). A zero
// low edge gives a low-pass filter. The taps are Hamming windowed and not
// normalized, and numTaps should be even so that no center tap exists.
func DesignFIRBandPass(numTaps int, low, high float64) []float32 {
	taps := make([]float32, numTaps)
	M := float64(numTaps - 1)
	// Only the first half is evaluated, the rest is mirrored so the
	// table is exactly symmetric.
	for n := 0; n < (numTaps+1)/2; n++ {
		x := float64(n) - M/2
		var v float64
		if x == 0 {
			v = 2 * (high - low)
		} else {
			v = (math.Sin(2*math.Pi*high*x) - math.Sin(2*math.Pi*low*x)) / (math.Pi * x)
		}
		// Apply Hamming window
		v *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/M)
		taps[n] = float32(v)
		taps[numTaps-1-n] = float32(v)
	}
	return taps
}

// DesignFIRLowPass creates a low-pass FIR filter using the windowed-sinc method.
func DesignFIRLowPass(numTaps int, cutoff float64) []float32 {
	return DesignFIRBandPass(numTaps, 0, cutoff)
}

// Half returns the first half of a symmetric tap table, the form used by
// the paired-sample convolutions.
func Half(taps []float32) []float32 {
	return taps[:len(taps)/2]
}
