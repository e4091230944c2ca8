package dsp

import (
	"encoding/binary"
	"math"
)

// Quantize scales src by volume*32768 into signed 16-bit samples. Values
// outside the int16 range saturate; the number of saturated samples is
// returned. dst must hold at least len(src) samples.
func Quantize(dst []int16, src []float32, volume float64) (pcm []int16, clipped int) {
	dst = dst[:len(src)]
	coef := float32(volume * 32768)
	for i, v := range src {
		v *= coef
		switch {
		case v > math.MaxInt16:
			dst[i] = math.MaxInt16
			clipped++
		case v < math.MinInt16:
			dst[i] = math.MinInt16
			clipped++
		default:
			dst[i] = int16(math.RoundToEven(float64(v)))
		}
	}
	return dst, clipped
}

// PutPCM16 encodes samples as little-endian bytes into dst and returns the
// written prefix. dst must hold at least 2*len(samples) bytes.
func PutPCM16(dst []byte, samples []int16) []byte {
	dst = dst[:2*len(samples)]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
	}
	return dst
}

// RMS returns the DC-corrected root mean square of samples in int16 units,
// where 1.0 maps to 32768.
func RMS(samples []float32) int {
	if len(samples) == 0 {
		return 0
	}
	var sum, sq float64
	for _, v := range samples {
		s := float64(v) * 32768
		sum += s
		sq += s * s
	}
	n := float64(len(samples))
	mean := sum / n
	variance := sq/n - mean*mean
	if variance <= 0 {
		return 0
	}
	return int(math.Sqrt(variance))
}
