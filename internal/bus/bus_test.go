package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewEventBus()

	got := make(chan Event, 1)
	b.Subscribe(EventTypeSentenceEmitted, func(e Event) {
		got <- e
	})

	b.Publish(Event{Type: EventTypeSentenceEmitted, Data: map[string]any{"text": "你好。"}})

	select {
	case e := <-got:
		assert.Equal(t, "你好。", e.Data["text"])
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}
}

func TestPublishSyncWaitsForHandlers(t *testing.T) {
	b := NewEventBus()

	var count int64
	var wg sync.WaitGroup
	wg.Add(1)
	b.Subscribe(EventTypeTurnComplete, func(Event) {
		atomic.AddInt64(&count, 1)
		wg.Done()
	})

	b.PublishSync(Event{Type: EventTypeTurnComplete})
	wg.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&count))
}

func TestSubscribeMultiple(t *testing.T) {
	b := NewEventBus()

	var count int64
	b.SubscribeMultiple([]EventType{EventTypePlaybackStarted, EventTypePlaybackEnded}, func(Event) {
		atomic.AddInt64(&count, 1)
	})

	b.PublishSync(Event{Type: EventTypePlaybackStarted})
	b.PublishSync(Event{Type: EventTypePlaybackEnded})
	assert.Equal(t, int64(2), atomic.LoadInt64(&count))
}

func TestClearRemovesHandlers(t *testing.T) {
	b := NewEventBus()

	var count int64
	b.Subscribe(EventTypeToast, func(Event) { atomic.AddInt64(&count, 1) })
	b.Clear()

	b.PublishSync(Event{Type: EventTypeToast})
	assert.Zero(t, atomic.LoadInt64(&count))
}
