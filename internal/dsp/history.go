package dsp

// History is a fixed-length circular store of the most recent samples,
// indexed by distance from its oldest or newest end.
type History struct {
	buf []float32
	pos int // next write, which is also the oldest sample
}

// NewHistory allocates a zeroed history of n samples.
func NewHistory(n int) *History {
	return &History{buf: make([]float32, n)}
}

// Push overwrites the oldest sample with v.
func (h *History) Push(v float32) {
	h.buf[h.pos] = v
	h.pos++
	if h.pos == len(h.buf) {
		h.pos = 0
	}
}

// Oldest returns the sample k positions after the oldest one.
func (h *History) Oldest(k int) float32 {
	return h.buf[(h.pos+k)%len(h.buf)]
}

// Newest returns the sample k positions before the newest one.
func (h *History) Newest(k int) float32 {
	n := len(h.buf)
	return h.buf[((h.pos-1-k)%n+n)%n]
}

// PairSum convolves the history with a symmetric filter given by its first
// half: the sum over k of (Oldest(k) + Newest(k)) * half[k].
func (h *History) PairSum(half []float32) float32 {
	var acc float32
	for k, c := range half {
		acc += (h.Oldest(k) + h.Newest(k)) * c
	}
	return acc
}

// PairSum3 evaluates PairSum for three filters of equal length in one pass.
func (h *History) PairSum3(a, b, c []float32) (va, vb, vc float32) {
	for k := range a {
		v := h.Oldest(k) + h.Newest(k)
		va += v * a[k]
		vb += v * b[k]
		vc += v * c[k]
	}
	return va, vb, vc
}

// Reset zeroes the stored samples.
func (h *History) Reset() {
	clear(h.buf)
	h.pos = 0
}
