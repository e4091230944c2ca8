// Package timeshift keeps the most recent audio chunks so playback can run
// behind the live edge.
package timeshift

import (
	"fmt"
	"sync/atomic"
)

// Buffer is a circular store of fixed-size audio chunks. Push and the slot
// bookkeeping belong to a single goroutine; the requested shift may be
// changed from any goroutine.
type Buffer struct {
	data     []byte
	slotSize int
	slots    int

	bottom int  // slot written by the next Push
	full   bool // wrapped at least once

	shift atomic.Int64 // requested distance from the live edge, in slots
}

// New allocates a buffer of slots chunks of slotSize bytes each.
func New(slots, slotSize int) (*Buffer, error) {
	if slots < 2 || slotSize <= 0 {
		return nil, fmt.Errorf("timeshift: invalid geometry %d x %d", slots, slotSize)
	}
	return &Buffer{
		data:     make([]byte, slots*slotSize),
		slotSize: slotSize,
		slots:    slots,
	}, nil
}

// Shift returns the requested shift in slots.
func (b *Buffer) Shift() int {
	return int(b.shift.Load())
}

// SetShift requests playback n slots behind the live edge. Out of range
// values are clamped on the next Push.
func (b *Buffer) SetShift(n int) {
	b.shift.Store(int64(n))
}

// Adjust moves the requested shift by delta slots; positive goes further
// into the past.
func (b *Buffer) Adjust(delta int) {
	b.shift.Add(int64(delta))
}

// Live returns playback to the live edge.
func (b *Buffer) Live() {
	b.shift.Store(0)
}

// IsLive reports whether playback follows the live edge.
func (b *Buffer) IsLive() bool {
	return b.shift.Load() <= 0
}

// maxShift is the furthest the current slot can reach back: every slot
// written so far, or all other slots once the buffer has wrapped.
func (b *Buffer) maxShift() int {
	if b.full {
		return b.slots - 1
	}
	return b.bottom
}

// Clamp limits shift to what the buffer currently holds.
func (b *Buffer) Clamp(shift int) int {
	return min(max(shift, 0), b.maxShift())
}

// ReadSlot returns the slot played for the given requested shift when the
// live chunk sits at the current write position.
func (b *Buffer) ReadSlot(shift int) int {
	out := b.bottom - b.Clamp(shift)
	if out < 0 {
		out += b.slots
	}
	return out
}

// Push stores chunk as the newest slot and returns the chunk to play, which
// is the live chunk itself or an older one according to the requested
// shift. The returned slice aliases the buffer and stays valid until the
// slot is overwritten. len(chunk) must equal the slot size.
func (b *Buffer) Push(chunk []byte) []byte {
	copy(b.slot(b.bottom), chunk)

	requested := b.shift.Load()
	shift := b.Clamp(int(requested))
	if int64(shift) != requested {
		// Keep the clamped value unless the request changed meanwhile.
		b.shift.CompareAndSwap(requested, int64(shift))
	}
	out := b.slot(b.ReadSlot(shift))

	b.bottom++
	if b.bottom >= b.slots {
		b.bottom = 0
		b.full = true
	}
	return out
}

func (b *Buffer) slot(i int) []byte {
	return b.data[i*b.slotSize : (i+1)*b.slotSize]
}

// Depth returns the number of slots currently held.
func (b *Buffer) Depth() int {
	if b.full {
		return b.slots
	}
	return b.bottom
}
