package llm

import (
	"context"
	"sync"
)

// MockStreamer replays scripted replies, chunked to exercise the
// segmenter's partial-input handling. Used in tests and offline demos.
type MockStreamer struct {
	mu        sync.Mutex
	replies   []string
	next      int
	ChunkSize int // runes per chunk, 0 means whole reply at once
}

// NewMockStreamer creates a streamer that yields the given replies in order.
// Once exhausted it repeats the last reply.
func NewMockStreamer(replies ...string) *MockStreamer {
	return &MockStreamer{replies: replies, ChunkSize: 3}
}

// Stream yields the next scripted reply.
func (m *MockStreamer) Stream(ctx context.Context, _ []Message) (<-chan string, error) {
	m.mu.Lock()
	var reply string
	if len(m.replies) > 0 {
		if m.next < len(m.replies) {
			reply = m.replies[m.next]
			m.next++
		} else {
			reply = m.replies[len(m.replies)-1]
		}
	}
	size := m.ChunkSize
	m.mu.Unlock()

	out := make(chan string)
	go func() {
		defer close(out)
		if reply == "" {
			return
		}
		if size <= 0 {
			select {
			case out <- reply:
			case <-ctx.Done():
			}
			return
		}

		runes := []rune(reply)
		for i := 0; i < len(runes); i += size {
			end := i + size
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case out <- string(runes[i:end]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
