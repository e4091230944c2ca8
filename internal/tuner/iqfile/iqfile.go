// Package iqfile replays recorded IQ captures as if they came from a tuner.
// Raw unsigned 8-bit captures and 2-channel WAV files (8 or 16 bit) are
// supported.
package iqfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"go-fm-player/internal/tuner"
)

// DefaultChunkSize matches the buffer length delivered by the dongle.
const DefaultChunkSize = 16 * 16384

// Options configure a Source.
type Options struct {
	// ChunkSize is the number of bytes handed to each callback.
	ChunkSize int
	// Throttle paces delivery at the configured sample rate.
	Throttle bool
	Logger   *slog.Logger
}

// Source replays IQ data through the tuner.Device interface. Tuning calls
// are recorded but have no effect on the data.
type Source struct {
	r      io.Reader
	closer io.Closer
	opts   Options

	rate atomic.Uint32
	freq atomic.Uint32

	cancel     chan struct{}
	cancelOnce sync.Once
}

var _ tuner.Device = (*Source)(nil)

// New replays raw unsigned 8-bit IQ read from r.
func New(r io.Reader, opts Options) *Source {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Source{r: r, opts: opts, cancel: make(chan struct{})}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Open replays the capture at path, detecting WAV files by their header.
func Open(path string, opts Options) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("iqfile: open %q: %w", path, err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		// Not a WAV container, rewind and read raw IQ.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, fmt.Errorf("iqfile: rewind %q: %w", path, err)
		}
		return New(file, opts), nil
	}

	// Move to start of PCM/IQ data
	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, fmt.Errorf("iqfile: seek to PCM data: %w", err)
	}
	if decoder.NumChans != 2 || (decoder.BitDepth != 8 && decoder.BitDepth != 16) {
		file.Close()
		return nil, fmt.Errorf("iqfile: %q has %d channels of %d bits, want 2 channels of 8 or 16 bits",
			path, decoder.NumChans, decoder.BitDepth)
	}

	s := New(&wavReader{decoder: decoder, depth: int(decoder.BitDepth)}, opts)
	s.closer = file
	s.opts.Logger.Info("replaying WAV capture",
		"path", path, "bit_depth", decoder.BitDepth, "sample_rate", decoder.SampleRate)
	return s, nil
}

// wavReader converts WAV PCM frames back to unsigned 8-bit IQ bytes.
type wavReader struct {
	decoder *wav.Decoder
	depth   int
	buf     *audio.IntBuffer
}

func (w *wavReader) Read(p []byte) (int, error) {
	if w.buf == nil || len(w.buf.Data) < len(p) {
		w.buf = &audio.IntBuffer{
			Format: w.decoder.Format(),
			Data:   make([]int, len(p)),
		}
	}
	w.buf.Data = w.buf.Data[:len(p)]

	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i, v := range w.buf.Data[:n] {
		if w.depth == 16 {
			p[i] = byte(v>>8 + 128)
		} else {
			p[i] = byte(v)
		}
	}
	return n, nil
}

func (s *Source) SetCenterFreq(hz uint32) error {
	s.freq.Store(hz)
	return nil
}

// CenterFreq returns the last frequency set.
func (s *Source) CenterFreq() uint32 {
	return s.freq.Load()
}

func (s *Source) SetSampleRate(hz uint32) error {
	s.rate.Store(hz)
	return nil
}

func (s *Source) SetGain(tenthsDB int) (int, error) { return tenthsDB, nil }
func (s *Source) SetAutoGain() error                { return nil }
func (s *Source) SetFreqCorrection(int) error       { return nil }
func (s *Source) SetBiasTee(bool) error             { return nil }
func (s *Source) SetDirectSampling(bool) error      { return nil }
func (s *Source) SetOffsetTuning(bool) error        { return nil }
func (s *Source) ResetBuffer() error                { return nil }

// ReadAsync delivers the capture in ChunkSize pieces and returns io.EOF
// once it is exhausted.
func (s *Source) ReadAsync(cb func([]byte)) error {
	buf := make([]byte, s.opts.ChunkSize)
	start := time.Now()
	var sent int64

	for {
		select {
		case <-s.cancel:
			return nil
		default:
		}

		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			cb(buf[:n])
			sent += int64(n)
			if !s.wait(start, sent) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		if err != nil {
			return fmt.Errorf("iqfile: read: %w", err)
		}
	}
}

// wait sleeps until sent bytes are due at the configured sample rate. It
// returns false when cancelled meanwhile.
func (s *Source) wait(start time.Time, sent int64) bool {
	rate := s.rate.Load()
	if !s.opts.Throttle || rate == 0 {
		return true
	}
	// two bytes per complex sample
	due := start.Add(time.Duration(float64(sent) / float64(2*rate) * float64(time.Second)))
	d := time.Until(due)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.cancel:
		return false
	case <-timer.C:
		return true
	}
}

func (s *Source) CancelAsync() error {
	s.cancelOnce.Do(func() { close(s.cancel) })
	return nil
}

func (s *Source) Close() error {
	s.CancelAsync()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
