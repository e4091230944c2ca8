package audio

import "sync"

// Queue buffers PCM chunks between the output stage and the sound card
// callback. Reads never block: missing audio is filled with silence.
// When more than limit bytes are queued the oldest chunks are dropped.
type Queue struct {
	mu     sync.Mutex
	chunks [][]byte
	queued int
	limit  int
}

func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

// Push appends a copy of chunk and returns the number of bytes dropped to
// stay within the limit.
func (q *Queue) Push(chunk []byte) (dropped int) {
	c := make([]byte, len(chunk))
	copy(c, chunk)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = append(q.chunks, c)
	q.queued += len(c)
	for q.limit > 0 && q.queued > q.limit && len(q.chunks) > 1 {
		dropped += len(q.chunks[0])
		q.queued -= len(q.chunks[0])
		q.chunks[0] = nil
		q.chunks = q.chunks[1:]
	}
	return dropped
}

// Read implements io.Reader for the audio backend. It always fills p.
func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	n := 0
	for n < len(p) && len(q.chunks) > 0 {
		c := copy(p[n:], q.chunks[0])
		n += c
		q.queued -= c
		if c == len(q.chunks[0]) {
			q.chunks[0] = nil
			q.chunks = q.chunks[1:]
		} else {
			q.chunks[0] = q.chunks[0][c:]
		}
	}
	q.mu.Unlock()

	clear(p[n:])
	return len(p), nil
}

func (q *Queue) Queued() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queued
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks = nil
	q.queued = 0
}
