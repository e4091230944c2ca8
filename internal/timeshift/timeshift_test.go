package timeshift

import (
	"bytes"
	"math/rand/v2"
	"testing"
)

func TestNew_RejectsBadGeometry(t *testing.T) {
	if _, err := New(1, 16); err == nil {
		t.Error("expected error for a single slot")
	}
	if _, err := New(4, 0); err == nil {
		t.Error("expected error for empty slots")
	}
}

func TestReadSlot_ClampProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for _, total := range []int{2, 3, 10, 640} {
		b, err := New(total, 4)
		if err != nil {
			t.Fatal(err)
		}
		chunk := make([]byte, 4)
		for pushes := 0; pushes < 3*total; pushes++ {
			for i := 0; i < 20; i++ {
				shift := rng.IntN(3*total) - total
				got := b.ReadSlot(shift)
				if got < 0 || got >= total {
					t.Fatalf("total=%d pushes=%d shift=%d: slot %d out of range", total, pushes, shift, got)
				}
				want := ((b.bottom-b.Clamp(shift))%total + total) % total
				if got != want {
					t.Fatalf("total=%d pushes=%d shift=%d: slot %d, want %d", total, pushes, shift, got, want)
				}
				if c := b.Clamp(shift); c < 0 || c > total-1 || (!b.full && c > b.bottom) {
					t.Fatalf("clamp %d escapes the filled range", c)
				}
			}
			b.Push(chunk)
		}
	}
}

func TestPush_PlaysPastChunks(t *testing.T) {
	b, err := New(8, 2)
	if err != nil {
		t.Fatal(err)
	}
	chunk := func(n int) []byte { return []byte{byte(n), byte(n)} }

	// Live playback returns what was just pushed.
	for n := 0; n < 5; n++ {
		if got := b.Push(chunk(n)); !bytes.Equal(got, chunk(n)) {
			t.Fatalf("live push %d returned %v", n, got)
		}
	}

	b.SetShift(3)
	if got := b.Push(chunk(5)); !bytes.Equal(got, chunk(2)) {
		t.Errorf("expected chunk 2 three slots back, got %v", got)
	}
	if b.IsLive() {
		t.Error("shifted buffer reports live")
	}

	// Asking for more than was recorded stops at the oldest chunk.
	b.SetShift(100)
	if got := b.Push(chunk(6)); !bytes.Equal(got, chunk(0)) {
		t.Errorf("expected oldest chunk, got %v", got)
	}
	if b.Shift() != 6 {
		t.Errorf("expected shift clamped to 6, got %d", b.Shift())
	}

	// Once wrapped, the reach is every other slot.
	b.Push(chunk(7))
	b.Push(chunk(8))
	b.SetShift(100)
	if got := b.Push(chunk(9)); !bytes.Equal(got, chunk(2)) {
		t.Errorf("expected chunk 2 after wrap, got %v", got)
	}
	if b.Shift() != 7 || b.Depth() != 8 {
		t.Errorf("expected shift 7 depth 8, got %d %d", b.Shift(), b.Depth())
	}

	b.Adjust(-10)
	b.Push(chunk(10))
	if !b.IsLive() || b.Shift() != 0 {
		t.Errorf("negative shift should clamp to live, got %d", b.Shift())
	}
}
