package console

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// ErrNotTerminal is returned by MakeRaw when the file is not a terminal.
var ErrNotTerminal = errors.New("console: not a terminal")

// Terminal holds a terminal switched to raw mode.
type Terminal struct {
	fd    int
	state *term.State
	once  sync.Once
}

// MakeRaw disables line buffering and echo on f so single key presses can
// be read.
func MakeRaw(f *os.File) (*Terminal, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &Terminal{fd: fd, state: state}, nil
}

// Restore returns the terminal to its previous mode. It is safe to call
// more than once.
func (t *Terminal) Restore() error {
	var err error
	t.once.Do(func() {
		err = term.Restore(t.fd, t.state)
	})
	return err
}

// CRLF returns a writer that expands "\n" to "\r\n", as a terminal in raw
// mode no longer does. Writes are serialized.
func CRLF(w io.Writer) io.Writer {
	return &crlfWriter{w: w}
}

type crlfWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
