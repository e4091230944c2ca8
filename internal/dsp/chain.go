package dsp

// ChainConfig describes a complete demodulation chain.
type ChainConfig struct {
	// ChunkBytes is the largest raw block passed to Process. It must be a
	// multiple of BlockFloats.
	ChunkBytes int
	// Rotate applies the quarter-rate mixer during conversion. It is used
	// whenever the tuner is not offset tuned.
	Rotate bool

	Mode       MuxMode
	DemodRate  int
	OutputRate int
	HistoryLen int
	Deemphasis float64 // pole, zero disables
	Volume     float64
}

// Result is the output of one processed block. PCM aliases the chain's
// internal buffer and is only valid until the next call to Process.
type Result struct {
	PCM     []byte
	RMS     int
	Clipped int
}

// Chain runs the stages in order: conversion, channel filter,
// discriminator, multiplex decoder, de-emphasis and quantization. All
// working buffers are allocated once.
type Chain struct {
	cfg    ChainConfig
	dec    *Decimator
	disc   *Discriminator
	mux    *Multiplexer
	deemph *Deemphasis

	iq    []float32
	phase []float32
	audio []float32
	pcm   []int16
	out   []byte
}

// NewChain allocates a chain for cfg.
func NewChain(cfg ChainConfig) *Chain {
	mux := NewMultiplexer(cfg.Mode, cfg.DemodRate, cfg.OutputRate, cfg.HistoryLen)
	maxOut := mux.MaxOutput(cfg.ChunkBytes / (2 * DecimationFactor))
	return &Chain{
		cfg:    cfg,
		dec:    NewDecimator(),
		disc:   NewDiscriminator(),
		mux:    mux,
		deemph: NewDeemphasisLambda(cfg.Deemphasis, mux.Channels()),
		iq:     make([]float32, cfg.ChunkBytes),
		phase:  make([]float32, cfg.ChunkBytes/(2*DecimationFactor)),
		audio:  make([]float32, maxOut),
		pcm:    make([]int16, maxOut),
		out:    make([]byte, 2*maxOut),
	}
}

// Channels returns the number of interleaved output channels.
func (c *Chain) Channels() int {
	return c.mux.Channels()
}

// Process demodulates one raw unsigned 8-bit IQ block.
func (c *Chain) Process(raw []byte) Result {
	var iq []float32
	if c.cfg.Rotate {
		iq = Rotate90U8(c.iq, raw)
	} else {
		iq = ConvertU8(c.iq, raw)
	}

	lowpassed := c.dec.Process(iq)
	rms := RMS(lowpassed)

	phase := c.disc.Process(c.phase, lowpassed)
	audio := c.mux.Process(c.audio, phase)
	c.deemph.Process(audio)

	pcm, clipped := Quantize(c.pcm, audio, c.cfg.Volume)
	return Result{
		PCM:     PutPCM16(c.out, pcm),
		RMS:     rms,
		Clipped: clipped,
	}
}

// Reset clears the state carried between blocks.
func (c *Chain) Reset() {
	c.dec.Reset()
	c.disc.Reset()
	c.mux.Reset()
	c.deemph.Reset()
}
