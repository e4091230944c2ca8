package dsp

// u8Table maps an unsigned 8-bit sample to a float centered on zero.
// Row 1 holds the negated values used by the rotation.
var u8Table [2][256]float32

func init() {
	for i := 0; i < 256; i++ {
		u8Table[0][i] = (float32(i) - 127.5) / 128
		u8Table[1][i] = (float32(i) - 127.5) / -128
	}
}

// ConvertU8 converts interleaved unsigned 8-bit IQ into floats.
// dst must hold at least len(src) values.
func ConvertU8(dst []float32, src []byte) []float32 {
	dst = dst[:len(src)]
	for i, b := range src {
		dst[i] = u8Table[0][b]
	}
	return dst
}

// Rotate90U8 converts interleaved unsigned 8-bit IQ into floats while
// multiplying the complex stream by 1, j, -1, -j. This shifts the spectrum
// by a quarter of the sample rate, undoing the tuner's offset from the
// wanted channel. len(src) must be a multiple of 8.
func Rotate90U8(dst []float32, src []byte) []float32 {
	dst = dst[:len(src)]
	pos, neg := &u8Table[0], &u8Table[1]
	for i := 0; i+8 <= len(src); i += 8 {
		b := src[i : i+8 : i+8]
		o := dst[i : i+8 : i+8]
		o[0] = pos[b[0]]
		o[1] = pos[b[1]]
		o[2] = neg[b[3]]
		o[3] = pos[b[2]]
		o[4] = neg[b[4]]
		o[5] = neg[b[5]]
		o[6] = pos[b[7]]
		o[7] = neg[b[6]]
	}
	return dst
}
