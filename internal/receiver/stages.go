package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go-fm-player/internal/observe"
	"go-fm-player/internal/ringbuffer"
)

// capture streams the device into the input ring. The async read can only
// be cancelled from inside its own callback, so cancellation takes effect
// on the next delivered buffer.
func (r *Receiver) capture(ctx context.Context) error {
	defer r.inRing.Close()

	err := r.dev.ReadAsync(func(buf []byte) {
		r.onSamples(ctx, buf)
	})
	switch {
	case errors.Is(err, io.EOF):
		r.logger.Info("end of capture, draining")
		return nil
	case err != nil && ctx.Err() == nil:
		return fmt.Errorf("receiver: capture: %w", err)
	}
	return nil
}

func (r *Receiver) onSamples(ctx context.Context, buf []byte) {
	if ctx.Err() != nil {
		if err := r.dev.CancelAsync(); err != nil {
			r.logger.Debug("cancel capture", "err", err)
		}
		return
	}

	// Discard the settling transient after a retune.
	if n := int(r.mute.Swap(0)); n > 0 {
		for i := range min(n, len(buf)) {
			buf[i] = 127
		}
	}

	if dropped := r.inRing.Write(buf); dropped > 0 {
		r.logger.Warn("dropping input buffer", "bytes", dropped)
		r.metrics.RecordDropped(ctx, observe.RingInput, dropped)
	}
}

// demodulate turns input chunks into PCM in the output ring.
func (r *Receiver) demodulate(ctx context.Context) error {
	defer r.outRing.Close()

	chunk := make([]byte, r.cfg.InputChunkSize)
	for {
		if err := r.inRing.Read(ctx, chunk, r.cfg.PollInterval); err != nil {
			if errors.Is(err, ringbuffer.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := r.demodChunk(ctx, chunk); err != nil {
			return err
		}
	}
}

func (r *Receiver) demodChunk(ctx context.Context, chunk []byte) error {
	start := time.Now()
	res := r.chain.Process(chunk)
	r.metrics.DemodDuration.Record(ctx, time.Since(start).Seconds())
	r.metrics.DemodChunks.Add(ctx, 1)

	r.chunks++
	if res.Clipped > 0 {
		r.clipped += int64(res.Clipped)
		r.metrics.ClippedSamples.Add(ctx, int64(res.Clipped))
	}
	if r.chunks%100 == 0 && r.clipped > 0 {
		r.logger.Debug("clipping", "samples", r.clipped, "chunks", r.chunks)
	}

	if r.squelched(res.RMS) {
		r.metrics.SquelchSkips.Add(ctx, 1)
		if r.cfg.TerminateOnSquelch() {
			return ErrSquelchExit
		}
		r.requestHop()
		return nil
	}

	if dropped := r.outRing.Write(res.PCM); dropped > 0 {
		r.logger.Warn("dropping output buffer", "bytes", dropped)
		r.metrics.RecordDropped(ctx, observe.RingOutput, dropped)
	}
	return nil
}

// squelched counts consecutive chunks below the squelch level and reports
// whether the current one must be skipped. Once tripped it stays on a hair
// trigger: the next quiet chunk trips it again.
func (r *Receiver) squelched(rms int) bool {
	level := r.cfg.SquelchLevel
	if level == 0 {
		return false
	}
	if rms < level {
		r.squelchHits++
	} else {
		r.squelchHits = 0
	}
	limit := r.cfg.SquelchHits()
	if r.squelchHits > limit {
		r.squelchHits = limit + 1
		return true
	}
	return false
}

func (r *Receiver) requestHop() {
	select {
	case r.hop <- struct{}{}:
	default:
	}
}

// play moves output chunks through the time-shift buffer to the player and
// the file sinks.
func (r *Receiver) play(ctx context.Context) error {
	chunk := make([]byte, r.cfg.OutputChunkSize)
	for {
		if err := r.outRing.Read(ctx, chunk, r.cfg.PollInterval); err != nil {
			if errors.Is(err, ringbuffer.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		out := r.shift.Push(chunk)
		r.metrics.TimeShift.Record(ctx, int64(r.shift.Shift()))
		if err := r.deliver(ctx, out); err != nil {
			return err
		}
	}
}

func (r *Receiver) deliver(ctx context.Context, pcm []byte) error {
	if r.player != nil {
		if dropped := r.player.Push(pcm); dropped > 0 {
			r.logger.Warn("dropping queued audio", "bytes", dropped)
			r.metrics.RecordDropped(ctx, observe.RingPlayer, dropped)
		}
	}
	if r.output != nil {
		if _, err := r.output.Write(pcm); err != nil {
			return fmt.Errorf("receiver: write output: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recorder == nil {
		return nil
	}
	if _, err := r.recorder.Write(pcm); err != nil {
		r.logger.Error("recording failed, stopping", "file", r.recording, "err", err)
		r.closeRecorderLocked()
	}
	return nil
}
