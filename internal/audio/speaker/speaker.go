// Package speaker plays receiver audio through the system sound card.
package speaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"go-fm-player/internal/audio"
)

// Player streams queued PCM chunks to an oto player.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	queue  *audio.Queue

	mu     sync.Mutex
	closed bool
}

var _ audio.Player = (*Player)(nil)

// New opens the sound card for signed 16-bit PCM. chunkSize sets the
// backend buffer; at most maxQueued bytes wait for playback.
func New(sampleRate, channels, chunkSize, maxQueued int) (*Player, error) {
	bytesPerSecond := sampleRate * channels * 2
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(chunkSize) * time.Second / time.Duration(bytesPerSecond),
	})
	if err != nil {
		return nil, fmt.Errorf("speaker: open audio device: %w", err)
	}
	<-ready

	queue := audio.NewQueue(maxQueued)
	p := &Player{
		ctx:    ctx,
		player: ctx.NewPlayer(queue),
		queue:  queue,
	}
	p.player.Play()
	return p, nil
}

func (p *Player) Push(chunk []byte) int {
	return p.queue.Push(chunk)
}

// SetMuted silences playback while the stream keeps flowing.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if muted {
		p.player.SetVolume(0)
	} else {
		p.player.SetVolume(1)
	}
}

func (p *Player) Queued() int {
	return p.queue.Queued()
}

func (p *Player) Clear() {
	p.queue.Clear()
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.player.Pause()
	return p.player.Close()
}
