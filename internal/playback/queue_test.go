package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlin/voicetalk/internal/bus"
	"github.com/jwlin/voicetalk/internal/tts"
)

// fakeSink records played signal sizes and can hold playback open.
type fakeSink struct {
	mu      sync.Mutex
	sizes   []int
	active  int32
	overlap int32
	release chan struct{} // when set, Play blocks until closed or cancelled
	started chan struct{} // signalled once per Play call
}

func newFakeSink() *fakeSink {
	return &fakeSink{started: make(chan struct{}, 16)}
}

func (f *fakeSink) Play(ctx context.Context, sig *Signal) error {
	if atomic.AddInt32(&f.active, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	defer atomic.AddInt32(&f.active, -1)

	f.mu.Lock()
	f.sizes = append(f.sizes, len(sig.Samples))
	release := f.release
	f.mu.Unlock()

	f.started <- struct{}{}

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// pcm16 builds a raw PCM payload of n samples.
func pcm16(n int) []byte {
	return make([]byte, n*2)
}

type completion struct {
	id        string
	cancelled bool
}

func TestQueuePlaysInOrder(t *testing.T) {
	sink := newFakeSink()
	q := NewQueue(zerolog.Nop(), bus.NewEventBus(), sink)
	q.Start()
	defer q.Close()

	completions := make(chan completion, 3)
	for i, n := range []int{10, 20, 30} {
		id := string(rune('a' + i))
		q.Enqueue(&Task{
			ID:         id,
			Audio:      pcm16(n),
			Format:     tts.FormatPCM16,
			SampleRate: 16000,
			OnComplete: func(cancelled bool) {
				completions <- completion{id: id, cancelled: cancelled}
			},
		})
	}

	var got []completion
	for i := 0; i < 3; i++ {
		select {
		case c := <-completions:
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatal("completion never fired")
		}
	}

	assert.Equal(t, []completion{{"a", false}, {"b", false}, {"c", false}}, got)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []int{10, 20, 30}, sink.sizes)
	assert.Zero(t, atomic.LoadInt32(&sink.overlap), "two sources were active at once")
}

func TestQueueAdvancesPastFailedAudio(t *testing.T) {
	sink := newFakeSink()
	q := NewQueue(zerolog.Nop(), bus.NewEventBus(), sink)
	q.Start()
	defer q.Close()

	completions := make(chan completion, 3)
	done := func(id string) func(bool) {
		return func(cancelled bool) { completions <- completion{id, cancelled} }
	}

	// No audio at all (failed synthesis upstream).
	q.Enqueue(&Task{ID: "failed", OnComplete: done("failed")})
	// Undecodable payload.
	q.Enqueue(&Task{ID: "garbage", Audio: []byte{1, 2, 3}, Format: "ogg", OnComplete: done("garbage")})
	// A healthy task after the failures.
	q.Enqueue(&Task{ID: "ok", Audio: pcm16(8), Format: tts.FormatPCM16, SampleRate: 16000, OnComplete: done("ok")})

	var got []completion
	for i := 0; i < 3; i++ {
		select {
		case c := <-completions:
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatal("completion never fired")
		}
	}

	// Failures still complete, and complete as not-cancelled, so turn
	// accounting stays balanced.
	assert.Equal(t, []completion{{"failed", false}, {"garbage", false}, {"ok", false}}, got)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []int{8}, sink.sizes)
}

func TestQueueClearMidPlayback(t *testing.T) {
	sink := newFakeSink()
	sink.release = make(chan struct{})

	eventBus := bus.NewEventBus()
	cleared := make(chan bus.Event, 1)
	eventBus.Subscribe(bus.EventTypePlaybackCleared, func(e bus.Event) {
		select {
		case cleared <- e:
		default:
		}
	})

	q := NewQueue(zerolog.Nop(), eventBus, sink)
	q.Start()
	defer q.Close()

	completions := make(chan completion, 2)
	done := func(id string) func(bool) {
		return func(cancelled bool) { completions <- completion{id, cancelled} }
	}

	q.Enqueue(&Task{ID: "playing", Audio: pcm16(10), Format: tts.FormatPCM16, SampleRate: 16000, OnComplete: done("playing")})
	q.Enqueue(&Task{ID: "pending", Audio: pcm16(10), Format: tts.FormatPCM16, SampleRate: 16000, OnComplete: done("pending")})

	<-sink.started // first task is in flight

	q.Clear()

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case c := <-completions:
			got[c.id] = c.cancelled
		case <-time.After(2 * time.Second):
			t.Fatal("completion never fired")
		}
	}
	assert.True(t, got["playing"], "interrupted task must complete as cancelled")
	assert.True(t, got["pending"], "dropped task must complete as cancelled")

	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("no cleared event published")
	}

	// The queue accepts fresh work after a clear.
	sink.mu.Lock()
	sink.release = nil
	sink.mu.Unlock()

	q.Enqueue(&Task{ID: "fresh", Audio: pcm16(4), Format: tts.FormatPCM16, SampleRate: 16000, OnComplete: done("fresh")})
	select {
	case c := <-completions:
		assert.Equal(t, completion{"fresh", false}, c)
	case <-time.After(2 * time.Second):
		t.Fatal("fresh task never completed")
	}
}

func TestQueueClearRespectsProtected(t *testing.T) {
	sink := newFakeSink()
	sink.release = make(chan struct{})

	q := NewQueue(zerolog.Nop(), bus.NewEventBus(), sink)
	q.Start()
	defer q.Close()

	completions := make(chan completion, 1)
	q.Enqueue(&Task{
		ID:         "announcement",
		Audio:      pcm16(10),
		Format:     tts.FormatPCM16,
		SampleRate: 16000,
		Protected:  true,
		OnComplete: func(cancelled bool) { completions <- completion{"announcement", cancelled} },
	})

	<-sink.started
	q.Clear() // must not interrupt

	select {
	case <-completions:
		t.Fatal("protected task was interrupted by Clear")
	case <-time.After(100 * time.Millisecond):
	}

	close(sink.release)
	select {
	case c := <-completions:
		assert.False(t, c.cancelled, "protected task must finish normally")
	case <-time.After(2 * time.Second):
		t.Fatal("protected task never completed")
	}
}

func TestQueueClearWhenIdle(t *testing.T) {
	q := NewQueue(zerolog.Nop(), bus.NewEventBus(), newFakeSink())
	q.Start()
	defer q.Close()

	require.NotPanics(t, func() {
		q.Clear()
		q.Clear()
	})
	assert.False(t, q.Playing())
	assert.Zero(t, q.Pending())
}
