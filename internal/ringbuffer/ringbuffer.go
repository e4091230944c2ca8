package ringbuffer

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Read once the buffer is closed and holds fewer
// bytes than requested.
var ErrClosed = errors.New("ringbuffer: closed")

// RingBuffer is a concurrent-safe byte ring for a single producer and a
// single consumer. The producer never blocks: when a write would exceed the
// capacity the oldest unread bytes are discarded.
type RingBuffer struct {
	buf        []byte
	size       int
	readIndex  int
	writeIndex int
	used       int
	dropped    uint64
	closed     bool
	mu         sync.RWMutex
	ready      chan struct{}
}

// New creates a new RingBuffer of a given size in bytes.
func New(size int) *RingBuffer {
	return &RingBuffer{
		buf:   make([]byte, size),
		size:  size,
		ready: make(chan struct{}, 1),
	}
}

// Size returns the capacity in bytes.
func (rb *RingBuffer) Size() int {
	return rb.size
}

// Used returns the number of unread bytes.
func (rb *RingBuffer) Used() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.used
}

// Dropped returns the total number of bytes discarded by overflow.
func (rb *RingBuffer) Dropped() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.dropped
}

// Close marks the buffer as closed, indicating no more writes will occur.
// It wakes up a waiting reader.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()
	rb.signal()
}

func (rb *RingBuffer) signal() {
	select {
	case rb.ready <- struct{}{}:
	default:
	}
}

// Write appends data at the write cursor, wrapping to offset zero at the
// end of the storage. It returns the number of unread bytes that had to be
// discarded to make room. Writes larger than the capacity keep only their
// trailing Size() bytes.
func (rb *RingBuffer) Write(data []byte) (dropped int) {
	if len(data) > rb.size {
		dropped = len(data) - rb.size
		data = data[dropped:]
	}

	rb.mu.Lock()
	if rb.closed {
		rb.mu.Unlock()
		// A programming error: the producer outlived Close.
		panic("write to closed ring buffer")
	}

	n := len(data)
	written := copy(rb.buf[rb.writeIndex:], data)
	if written < n {
		copy(rb.buf, data[written:])
	}
	rb.writeIndex = (rb.writeIndex + n) % rb.size
	rb.used += n

	if over := rb.used - rb.size; over > 0 {
		// Reader was lapped: the oldest bytes are gone.
		rb.readIndex = rb.writeIndex
		rb.used = rb.size
		dropped += over
	}
	rb.dropped += uint64(dropped)
	rb.mu.Unlock()

	rb.signal()
	return dropped
}

// TryRead copies exactly len(p) bytes into p if that many are available.
func (rb *RingBuffer) TryRead(p []byte) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.used < len(p) {
		return false
	}
	n := copy(p, rb.buf[rb.readIndex:])
	if n < len(p) {
		copy(p[n:], rb.buf)
	}
	rb.readIndex = (rb.readIndex + len(p)) % rb.size
	rb.used -= len(p)
	return true
}

// Read fills p with exactly len(p) bytes, waiting until they are available.
// Each wait is bounded by poll so that a missed signal costs at most one
// interval. It returns ctx.Err() when ctx is done, or ErrClosed when the
// buffer is closed and cannot satisfy the request.
func (rb *RingBuffer) Read(ctx context.Context, p []byte, poll time.Duration) error {
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		if rb.TryRead(p) {
			return nil
		}
		rb.mu.RLock()
		closed := rb.closed && rb.used < len(p)
		rb.mu.RUnlock()
		if closed {
			return ErrClosed
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(poll)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rb.ready:
		case <-timer.C:
		}
	}
}
