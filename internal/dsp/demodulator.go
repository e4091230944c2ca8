package dsp

import "math"

const (
	pi   = math.Pi
	pi2  = math.Pi / 2
	pi4  = math.Pi / 4
	atnA = 0.2447
	atnB = 0.0663
)

// Atan2Approx approximates math.Atan2(y, x) with a polynomial in the ratio
// of the smaller to the larger operand. The absolute error stays below
// 0.0015 rad.
func Atan2Approx(y, x float32) float32 {
	if x == 0 {
		switch {
		case y < 0:
			return -pi2
		case y > 0:
			return pi2
		}
		return 0
	}
	if y == 0 {
		if x < 0 {
			return pi
		}
		return 0
	}

	var z float32
	if x < 0 {
		if y < 0 {
			// third quadrant
			if x <= y {
				z = y / x
				return z*(pi4-(z-1)*(atnA+atnB*z)) - pi
			}
			z = x / y
			return z*(-pi4+(z-1)*(atnA+atnB*z)) - pi2
		}
		// second quadrant
		if -x >= y {
			z = y / x
			return z*(pi4+(z+1)*(atnA-atnB*z)) + pi
		}
		z = x / y
		return pi2 - z*(pi4+(z+1)*(atnA-atnB*z))
	}

	if y < 0 {
		// fourth quadrant
		if x >= -y {
			z = y / x
			return z * (pi4 + (z+1)*(atnA-atnB*z))
		}
		z = x / y
		return z*(-pi4-(z+1)*(atnA-atnB*z)) - pi2
	}

	// first quadrant
	if x >= y {
		z = y / x
		return z * (pi4 - (z-1)*(atnA+atnB*z))
	}
	z = x / y
	return pi2 - z*(pi4-(z-1)*(atnA+atnB*z))
}

// Discriminator implements a polar discriminator for FM demodulation.
type Discriminator struct {
	preR, preJ float32
}

// NewDiscriminator creates a new FM discriminator.
func NewDiscriminator() *Discriminator {
	return &Discriminator{}
}

// Process demodulates interleaved IQ floats into one phase difference per
// complex sample. The first output is measured against the last sample of
// the previous call. dst may alias iq.
func (d *Discriminator) Process(dst, iq []float32) []float32 {
	n := len(iq) / 2
	dst = dst[:n]
	preR, preJ := d.preR, d.preJ

	for k := 0; k < n; k++ {
		re, im := iq[2*k], iq[2*k+1]
		// The angle of cur * conj(prev) is the phase step.
		dst[k] = Atan2Approx(preR*im-preJ*re, re*preR+im*preJ)
		preR, preJ = re, im
	}

	d.preR, d.preJ = preR, preJ
	return dst
}

// Reset forgets the previous sample.
func (d *Discriminator) Reset() {
	d.preR, d.preJ = 0, 0
}
