// Package audio holds the PCM destinations of the receiver: file sinks for
// recording and the Player used for live playback.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned for output files whose extension names
// no known container.
var ErrUnsupportedFormat = errors.New("audio: unsupported output format")

// Sink receives signed 16-bit little-endian interleaved PCM.
type Sink interface {
	io.Writer
	Close() error
}

// Player plays PCM chunks on the sound card.
type Player interface {
	// Push queues a copy of chunk for playback and returns the number of
	// older queued bytes dropped to make room.
	Push(chunk []byte) (dropped int)
	SetMuted(muted bool)
	// Queued returns the number of bytes waiting to be played.
	Queued() int
	// Clear drops all queued audio.
	Clear()
	Close() error
}

// OpenFile creates a sink for path, choosing the container from its
// extension. "-" writes raw PCM to stdout.
func OpenFile(path string, sampleRate, channels int) (Sink, error) {
	if path == "-" {
		return NewRawSink(nopCloser{os.Stdout}), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return CreateWAV(path, sampleRate, channels)
	case ".raw", ".pcm":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("audio: create %q: %w", path, err)
		}
		return NewRawSink(f), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// RecordingName returns the file name used for a recording started at t.
func RecordingName(t time.Time) string {
	return t.Format("Recording_2006-01-02_15-04.wav")
}

// RawSink writes PCM bytes unchanged.
type RawSink struct {
	w io.WriteCloser
}

func NewRawSink(w io.WriteCloser) *RawSink {
	return &RawSink{w: w}
}

func (s *RawSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *RawSink) Close() error {
	return s.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
