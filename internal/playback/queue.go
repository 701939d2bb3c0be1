package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwlin/voicetalk/internal/bus"
	"github.com/jwlin/voicetalk/internal/screenplay"
)

// Task is one utterance waiting for playback. Audio may be nil when
// synthesis failed upstream; the queue still consumes the task so that
// turn accounting stays balanced.
type Task struct {
	ID         string
	Screenplay screenplay.Screenplay
	Audio      []byte
	Format     string
	SampleRate int

	// Protected tasks survive Clear. Used for utterances the flow must
	// finish, such as the final confirmation readback.
	Protected bool

	// OnComplete fires exactly once when the task leaves the queue,
	// with cancelled=true only when Clear interrupted or dropped it.
	OnComplete func(cancelled bool)
}

// Queue plays tasks strictly in enqueue order, one at a time.
type Queue struct {
	mu      sync.Mutex
	pending []*Task
	current *Task
	cancel  context.CancelFunc
	closed  bool

	wake chan struct{}
	done chan struct{}

	sink     Sink
	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewQueue creates a playback queue driving the given sink.
func NewQueue(logger zerolog.Logger, eventBus *bus.EventBus, sink Sink) *Queue {
	return &Queue{
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		sink:     sink,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "playback-queue").Logger(),
	}
}

// Start launches the playback worker.
func (q *Queue) Start() {
	go q.run()
}

// Close stops the worker and drops all pending tasks as cancelled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(q.done)
	for _, t := range dropped {
		t.complete(true)
	}
}

// Enqueue appends a task for playback.
func (q *Queue) Enqueue(task *Task) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		task.complete(true)
		return
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Clear interrupts the current task and drops everything pending. It is a
// no-op while a protected task is playing, and when the queue is already
// idle and empty.
func (q *Queue) Clear() {
	q.mu.Lock()
	if q.current != nil && q.current.Protected {
		q.mu.Unlock()
		q.logger.Debug().Msg("Clear ignored, protected task playing")
		return
	}
	dropped := q.pending
	q.pending = nil
	cancel := q.cancel
	hadWork := q.current != nil || len(dropped) > 0
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, t := range dropped {
		t.complete(true)
	}

	if hadWork {
		q.logger.Info().Int("dropped", len(dropped)).Msg("Playback queue cleared")
		q.eventBus.Publish(bus.Event{
			Type: bus.EventTypePlaybackCleared,
			Data: map[string]any{"dropped": len(dropped)},
		})
	}
}

// Playing reports whether a task is currently being played.
func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current != nil
}

// Pending returns the number of queued tasks not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}
		task := q.pending[0]
		q.pending = q.pending[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.current = task
		q.cancel = cancel
		q.mu.Unlock()

		cancelled := q.play(ctx, task)
		cancel()

		q.mu.Lock()
		q.current = nil
		q.cancel = nil
		q.mu.Unlock()

		task.complete(cancelled)

		select {
		case <-q.done:
			return
		default:
		}
	}
}

// play runs one task to completion and reports whether it was cancelled.
func (q *Queue) play(ctx context.Context, task *Task) bool {
	if task.Audio == nil {
		// Failed synthesis upstream. Consume the slot silently so the
		// rest of the queue keeps its order.
		q.logger.Warn().Str("task", task.ID).Msg("Skipping task without audio")
		q.eventBus.Publish(bus.Event{
			Type: bus.EventTypePlaybackEnded,
			Data: map[string]any{"task": task.ID, "skipped": true},
		})
		return false
	}

	sig, err := Decode(task.Audio, task.Format, task.SampleRate)
	if err != nil {
		q.logger.Error().Err(err).Str("task", task.ID).Msg("Audio decode failed")
		q.eventBus.Publish(bus.Event{
			Type: bus.EventTypePlaybackEnded,
			Data: map[string]any{"task": task.ID, "skipped": true},
		})
		return false
	}

	q.eventBus.Publish(bus.Event{
		Type: bus.EventTypePlaybackStarted,
		Data: map[string]any{
			"task":       task.ID,
			"text":       task.Screenplay.Talk.Message,
			"expression": string(task.Screenplay.Expression),
			"duration":   sig.Duration(),
		},
	})

	err = q.sink.Play(ctx, sig)
	cancelled := errors.Is(err, context.Canceled)

	q.eventBus.Publish(bus.Event{
		Type: bus.EventTypePlaybackEnded,
		Data: map[string]any{
			"task":      task.ID,
			"cancelled": cancelled,
		},
	})
	return cancelled
}

func (t *Task) complete(cancelled bool) {
	if t.OnComplete != nil {
		t.OnComplete(cancelled)
	}
}
