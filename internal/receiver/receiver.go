// Package receiver runs the FM receiver pipeline: capture from a tuner,
// demodulation, time-shifted playback and the scan controller.
//
// One Receiver owns the rings, the DSP chain and the sinks. Its four stages
// run as goroutines of a single errgroup and communicate only through the
// two ring buffers and the hop channel.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"go-fm-player/internal/audio"
	"go-fm-player/internal/config"
	"go-fm-player/internal/dsp"
	"go-fm-player/internal/observe"
	"go-fm-player/internal/ringbuffer"
	"go-fm-player/internal/timeshift"
	"go-fm-player/internal/tuner"
)

// ErrSquelchExit ends Run when the squelch is configured to terminate the
// receiver instead of hopping.
var ErrSquelchExit = errors.New("receiver: signal lost, exiting on squelch")

// ErrOutOfBand is returned by Tune for frequencies outside the tuning band.
var ErrOutOfBand = errors.New("receiver: frequency out of band")

// SinkFactory opens a recording sink.
type SinkFactory func(path string, sampleRate, channels int) (audio.Sink, error)

// Options collect the collaborators of a Receiver. Only Config and Device
// are required.
type Options struct {
	Config *config.Config
	Device tuner.Device
	// Player plays the time-shifted audio. Nil disables playback.
	Player audio.Player
	// Output receives the live audio when writing to a fixed file.
	Output audio.Sink
	// CreateSink opens recordings; defaults to audio.OpenFile.
	CreateSink SinkFactory
	Metrics    *observe.Metrics
	Logger     *slog.Logger
}

// Receiver is the pipeline context shared by all stages.
type Receiver struct {
	cfg     *config.Config
	dev     tuner.Device
	player  audio.Player
	output  audio.Sink
	create  SinkFactory
	metrics *observe.Metrics
	logger  *slog.Logger

	inRing  *ringbuffer.RingBuffer
	outRing *ringbuffer.RingBuffer
	chain   *dsp.Chain
	shift   *timeshift.Buffer
	hop     chan struct{}

	// mute is the number of bytes blanked at the start of the next
	// captured buffer.
	mute atomic.Int32

	// demodulator goroutine only
	squelchHits int
	chunks      int64
	clipped     int64

	mu        sync.Mutex
	freqs     []uint32
	freqNow   int
	muted     bool
	recorder  audio.Sink
	recording string
}

// New validates the configuration and allocates all pipeline buffers.
func New(opts Options) (*Receiver, error) {
	cfg := opts.Config
	if cfg == nil || opts.Device == nil {
		return nil, errors.New("receiver: config and device are required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Frequencies) == 0 {
		return nil, errors.New("receiver: no frequency to tune")
	}

	shift, err := timeshift.New(cfg.TimeShiftSlots(), cfg.OutputChunkSize)
	if err != nil {
		return nil, fmt.Errorf("receiver: allocate time shift buffer: %w", err)
	}

	r := &Receiver{
		cfg:     cfg,
		dev:     opts.Device,
		player:  opts.Player,
		output:  opts.Output,
		create:  opts.CreateSink,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		inRing:  ringbuffer.New(cfg.InputRingSize),
		outRing: ringbuffer.New(cfg.OutputRingSize),
		chain: dsp.NewChain(dsp.ChainConfig{
			ChunkBytes: cfg.InputChunkSize,
			Rotate:     !cfg.OffsetTuning,
			Mode:       muxMode(cfg.Mode),
			DemodRate:  cfg.DemodRate,
			OutputRate: cfg.ResampleRate,
			HistoryLen: cfg.HistoryLength,
			Deemphasis: cfg.DeemphasisLambda(),
			Volume:     cfg.Volume,
		}),
		shift: shift,
		hop:   make(chan struct{}, 1),
		freqs: append([]uint32(nil), cfg.Frequencies...),
	}
	if r.create == nil {
		r.create = audio.OpenFile
	}
	if r.metrics == nil {
		r.metrics = observe.Discard()
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

func muxMode(m config.Mode) dsp.MuxMode {
	switch m {
	case config.ModePassthrough:
		return dsp.MuxPassthrough
	case config.ModeMono:
		return dsp.MuxMono
	}
	return dsp.MuxStereo
}

// Channels returns the number of interleaved channels in the PCM output.
func (r *Receiver) Channels() int {
	return r.chain.Channels()
}

// SampleRate returns the PCM output rate.
func (r *Receiver) SampleRate() int {
	return r.cfg.AudioRate()
}

// Run configures the device and runs the pipeline until ctx is cancelled,
// the capture source is exhausted and drained, or a stage fails.
func (r *Receiver) Run(ctx context.Context) error {
	r.configure()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.capture(ctx) })
	g.Go(func() error { return r.demodulate(ctx) })
	g.Go(func() error {
		// Everything captured has been played; stop the controller.
		defer cancel()
		return r.play(ctx)
	})
	g.Go(func() error { return r.control(ctx) })

	err := g.Wait()
	if stopErr := r.stopRecording(); stopErr != nil {
		err = errors.Join(err, stopErr)
	}
	return err
}

// configure applies the initial tuner settings. Failures leave the device
// at its previous setting and are only logged.
func (r *Receiver) configure() {
	cfg := r.cfg
	warn := func(what string, err error) {
		if err != nil {
			r.logger.Warn("tuner setup failed", "setting", what, "err", err)
		}
	}

	if cfg.DirectSampling {
		warn("direct sampling", r.dev.SetDirectSampling(true))
	}
	if cfg.OffsetTuning {
		warn("offset tuning", r.dev.SetOffsetTuning(true))
	}

	r.mu.Lock()
	freq := r.freqs[r.freqNow]
	r.mu.Unlock()
	if err := r.setFrequency(freq); err != nil {
		warn("frequency", err)
	}

	rate := cfg.CaptureRate()
	if err := r.dev.SetSampleRate(uint32(rate)); err != nil {
		warn("sample rate", err)
	} else {
		r.logger.Info("sampling", "rate", rate, "output_rate", cfg.AudioRate(), "channels", r.Channels())
	}

	if cfg.AutoGain {
		warn("auto gain", r.dev.SetAutoGain())
	} else {
		gain, err := r.dev.SetGain(int(cfg.Gain * 10))
		if err != nil {
			warn("gain", err)
		} else {
			r.logger.Info("tuner gain set", "db", float64(gain)/10)
		}
	}
	if cfg.PPM != 0 {
		warn("ppm", r.dev.SetFreqCorrection(cfg.PPM))
	}
	if cfg.BiasTee {
		warn("bias tee", r.dev.SetBiasTee(true))
	}
	warn("reset buffer", r.dev.ResetBuffer())
}
