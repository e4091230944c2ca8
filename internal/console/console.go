// Package console maps single key presses to receiver controls and keeps
// the status line up to date.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go-fm-player/internal/config"
	"go-fm-player/internal/receiver"
)

// ErrQuit is returned by Run when the user asks to exit.
var ErrQuit = errors.New("console: exit requested")

// Controls is the part of the receiver driven from the keyboard.
type Controls interface {
	Step(delta int) error
	Tune(freq uint32) error
	ShiftBy(delta int)
	GoLive()
	ToggleMute() bool
	ToggleRecording(now time.Time) (string, bool, error)
	Status() receiver.Status
}

// Options configure a Console.
type Options struct {
	// OutputFile disables every control except exit when set.
	OutputFile string
	TuneStep   int
	ShiftStep  int
	// Refresh is the status line polling interval.
	Refresh time.Duration
	Logger  *slog.Logger
	Now     func() time.Time
}

// Console interprets key presses.
type Console struct {
	ctl  Controls
	out  io.Writer
	opts Options

	entering bool
	entry    []byte
	shown    string
}

func New(ctl Controls, out io.Writer, opts Options) *Console {
	if opts.TuneStep == 0 {
		opts.TuneStep = 100_000
	}
	if opts.ShiftStep == 0 {
		opts.ShiftStep = 10
	}
	if opts.Refresh == 0 {
		opts.Refresh = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Console{ctl: ctl, out: out, opts: opts}
}

func (c *Console) interactive() bool {
	return c.opts.OutputFile == ""
}

// PrintHelp writes the key summary.
func (c *Console) PrintHelp() {
	if c.interactive() {
		fmt.Fprint(c.out, "\n[KEYS]\nA: +100KHz Z: -100KHz F: Enter frequency\n"+
			"Q: TimeShift[Past] W: TimeShift[Present] E: TimeShift[Live]\n"+
			"M: Mute/Unmute\nR: Record\nX: Exit\n\n")
		return
	}
	fmt.Fprint(c.out, "\n[KEYS]\nX: Exit\n\n")
	fmt.Fprintf(c.out, "Controls disabled. Saving audio to %s\n\n", c.opts.OutputFile)
}

// Render redraws the status line when it changed or force is set.
func (c *Console) Render(force bool) {
	if c.entering {
		return
	}
	line := c.ctl.Status().String()
	if !force && line == c.shown {
		return
	}
	c.shown = line
	// Clear to the end of the line so shorter lines leave nothing behind.
	fmt.Fprintf(c.out, "\r%s\x1b[K", line)
}

// Handle processes a single key. It returns ErrQuit for the exit keys.
func (c *Console) Handle(key byte) error {
	if c.entering {
		c.handleEntry(key)
		return nil
	}

	switch lower(key) {
	case 'x', 0x03: // Ctrl-C arrives as a key in raw mode
		return ErrQuit
	}
	if !c.interactive() {
		return nil
	}

	switch lower(key) {
	case 'a':
		c.report(c.ctl.Step(c.opts.TuneStep))
	case 'z':
		c.report(c.ctl.Step(-c.opts.TuneStep))
	case 'f':
		c.entering = true
		c.entry = c.entry[:0]
		fmt.Fprint(c.out, "\r\x1b[KFrequency: ")
		return nil
	case 'q':
		c.ctl.ShiftBy(c.opts.ShiftStep)
	case 'w':
		c.ctl.ShiftBy(-c.opts.ShiftStep)
	case 'e':
		c.ctl.GoLive()
	case 'm':
		c.ctl.ToggleMute()
	case 'r':
		name, on, err := c.ctl.ToggleRecording(c.opts.Now())
		switch {
		case err != nil:
			c.report(err)
		case on:
			c.message("Recording to " + name)
		default:
			c.message("Saved " + name)
		}
	default:
		return nil
	}
	c.Render(true)
	return nil
}

func (c *Console) handleEntry(key byte) {
	switch key {
	case '\r', '\n':
		c.entering = false
		text := strings.TrimSpace(string(c.entry))
		if text != "" {
			freq, err := config.ParseFrequency(text)
			if err == nil {
				err = c.ctl.Tune(freq)
			}
			c.report(err)
		}
		fmt.Fprint(c.out, "\r\x1b[K")
		c.Render(true)
	case 0x1b: // Esc
		c.entering = false
		fmt.Fprint(c.out, "\r\x1b[K")
		c.Render(true)
	case 0x7f, 0x08:
		if len(c.entry) > 0 {
			c.entry = c.entry[:len(c.entry)-1]
			fmt.Fprint(c.out, "\b \b")
		}
	default:
		if isFrequencyChar(key) {
			c.entry = append(c.entry, key)
			fmt.Fprintf(c.out, "%c", key)
		}
	}
}

func isFrequencyChar(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b == '.':
		return true
	}
	return strings.IndexByte("kKmMgGhHzZ", b) >= 0
}

func (c *Console) report(err error) {
	if err != nil {
		c.opts.Logger.Warn("control failed", "err", err)
		c.message(err.Error())
	}
}

func (c *Console) message(s string) {
	fmt.Fprintf(c.out, "\r\x1b[K%s\n", s)
	c.shown = ""
}

// Run reads keys from in until the exit key, the end of input or ctx is
// done. The status line is refreshed periodically so that scanner hops
// show up without a key press.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(c.opts.Refresh)
	defer ticker.Stop()

	c.PrintHelp()
	c.Render(true)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case <-ticker.C:
			c.Render(false)
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				// No keyboard; keep the receiver running.
				<-ctx.Done()
				fmt.Fprintln(c.out)
				return nil
			}
			return fmt.Errorf("console: read keys: %w", err)
		case key := <-keys:
			if err := c.Handle(key); err != nil {
				fmt.Fprintln(c.out)
				return err
			}
		}
	}
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 'a' - 'A'
	}
	return b
}
