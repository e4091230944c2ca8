package receiver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-fm-player/internal/audio"
	"go-fm-player/internal/config"
)

// control retunes to the next scan frequency whenever the squelch asks
// for a hop.
func (r *Receiver) control(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.hop:
			r.next(ctx)
		}
	}
}

// next advances the scan list. With a single frequency there is nowhere to
// go and the squelch only mutes.
func (r *Receiver) next(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.freqs) <= 1 {
		return
	}
	r.freqNow = (r.freqNow + 1) % len(r.freqs)
	freq := r.freqs[r.freqNow]
	if err := r.setFrequency(freq); err != nil {
		r.logger.Warn("hop failed", "freq", freq, "err", err)
		return
	}
	r.metrics.Hops.Add(ctx, 1)
	r.logger.Debug("hopped", "freq", freq)
}

// setFrequency tunes the device so that freq lands at baseband and mutes
// the first samples captured afterwards.
func (r *Receiver) setFrequency(freq uint32) error {
	station := freq
	if r.cfg.Wideband {
		station += uint32(r.cfg.WidebandOffset)
	}
	capture := r.cfg.CaptureFrequency(station)
	if err := r.dev.SetCenterFreq(capture); err != nil {
		return err
	}
	r.mute.Store(config.BufferDump)
	r.logger.Info("tuned", "freq", config.FormatMHz(freq), "capture_hz", capture)
	return nil
}

// Frequency returns the station currently tuned.
func (r *Receiver) Frequency() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freqs[r.freqNow]
}

// Tune replaces the current scan entry with freq and returns playback to
// the live edge. Frequencies outside the band are rejected with
// ErrOutOfBand. On failure the previous frequency stays active.
func (r *Receiver) Tune(freq uint32) error {
	if int(freq) < r.cfg.BandLow || int(freq) > r.cfg.BandHigh {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfBand, config.FormatMHz(freq),
			config.FormatMHz(uint32(r.cfg.BandLow)), config.FormatMHz(uint32(r.cfg.BandHigh)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setFrequency(freq); err != nil {
		return fmt.Errorf("receiver: tune %s: %w", config.FormatMHz(freq), err)
	}
	r.freqs[r.freqNow] = freq
	r.shift.Live()
	if r.player != nil {
		r.player.Clear()
	}
	return nil
}

// Step moves the current frequency by delta Hz, wrapping around at the
// band edges.
func (r *Receiver) Step(delta int) error {
	low, high := r.cfg.BandLow, r.cfg.BandHigh
	next := int(r.Frequency()) + delta
	switch {
	case next > high:
		next = low
	case next < low:
		next = high
	}
	return r.Tune(uint32(next))
}

// ShiftBy moves playback delta output chunks further into the past; a
// negative delta moves towards live. The output stage clamps the request
// to what the buffer holds.
func (r *Receiver) ShiftBy(delta int) {
	r.shift.Adjust(delta)
}

// GoLive returns playback to the live edge.
func (r *Receiver) GoLive() {
	r.shift.Live()
}

// ToggleMute silences or restores playback and returns the new state.
func (r *Receiver) ToggleMute() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muted = !r.muted
	if r.player != nil {
		r.player.SetMuted(r.muted)
	}
	return r.muted
}

// ToggleRecording starts recording into a file named after now, or stops
// the running recording. It returns the file name and whether recording
// is now active. A failed open leaves recording off.
func (r *Receiver) ToggleRecording(now time.Time) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recorder != nil {
		name := r.recording
		return name, false, r.closeRecorderLocked()
	}

	name := audio.RecordingName(now)
	sink, err := r.create(name, r.SampleRate(), r.Channels())
	if err != nil {
		return name, false, fmt.Errorf("receiver: start recording: %w", err)
	}
	r.recorder, r.recording = sink, name
	r.logger.Info("recording", "file", name)
	return name, true, nil
}

func (r *Receiver) stopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeRecorderLocked()
}

func (r *Receiver) closeRecorderLocked() error {
	if r.recorder == nil {
		return nil
	}
	err := r.recorder.Close()
	r.logger.Info("recording stopped", "file", r.recording)
	r.recorder, r.recording = nil, ""
	if err != nil {
		return fmt.Errorf("receiver: close recording: %w", err)
	}
	return nil
}

// Status is a snapshot of the user-visible receiver state.
type Status struct {
	Frequency uint32
	Live      bool
	Muted     bool
	Recording bool
}

// Status returns the current state for the status line.
func (r *Receiver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Frequency: r.freqs[r.freqNow],
		Live:      r.shift.IsLive(),
		Muted:     r.muted,
		Recording: r.recorder != nil,
	}
}

// String renders the status line, e.g.
// "Set frequency to 96.40 MHz [Live] [muted] [rec]".
func (s Status) String() string {
	var b strings.Builder
	b.WriteString("Set frequency to ")
	b.WriteString(config.FormatMHz(s.Frequency))
	if s.Live {
		b.WriteString(" [Live]")
	} else {
		b.WriteString(" [TimeShift]")
	}
	if s.Muted {
		b.WriteString(" [muted]")
	}
	if s.Recording {
		b.WriteString(" [rec]")
	}
	return b.String()
}
