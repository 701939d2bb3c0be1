package tts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwlin/voicetalk/internal/bus"
	"github.com/jwlin/voicetalk/internal/screenplay"
)

// Dispatcher serializes synthesis requests against a single provider.
// Calls are chained: request N+1 does not start until request N's round
// trip has resolved, and a configurable floor is enforced between the end
// of one round trip and the start of the next. Delivery runs inside the
// chain, so downstream consumers observe results in submission order.
type Dispatcher struct {
	mu          sync.Mutex
	provider    Provider
	voiceID     string
	speed       float64
	minInterval time.Duration
	last        time.Time
	tail        chan struct{}

	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher for the given provider.
func NewDispatcher(logger zerolog.Logger, eventBus *bus.EventBus, provider Provider, minInterval time.Duration) *Dispatcher {
	tail := make(chan struct{})
	close(tail) // empty chain, first call proceeds immediately

	return &Dispatcher{
		provider:    provider,
		speed:       1.0,
		minInterval: minInterval,
		tail:        tail,
		eventBus:    eventBus,
		logger:      logger.With().Str("component", "tts-dispatcher").Logger(),
	}
}

// SetProvider swaps the synthesis provider. In-flight requests finish on
// the old provider; queued requests pick up the new one.
func (d *Dispatcher) SetProvider(p Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.provider = p
	d.logger.Info().Str("provider", p.Name()).Msg("Synthesis provider updated")
}

// SetVoice updates the voice and speed applied to subsequent requests.
func (d *Dispatcher) SetVoice(voiceID string, speed float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voiceID = voiceID
	if speed > 0 {
		d.speed = speed
	}
}

// Speak submits one screenplay for synthesis. deliver is invoked exactly
// once from the request chain, with nil on failure, before the next queued
// request may run. The returned channel closes when the round trip and
// delivery have completed.
func (d *Dispatcher) Speak(ctx context.Context, sp screenplay.Screenplay, deliver func(*SynthesizeResponse)) <-chan struct{} {
	d.mu.Lock()
	prev := d.tail
	done := make(chan struct{})
	d.tail = done
	provider := d.provider
	voiceID := d.voiceID
	speed := d.speed
	d.mu.Unlock()

	go func() {
		defer close(done)

		<-prev

		d.mu.Lock()
		wait := d.minInterval - time.Since(d.last)
		d.mu.Unlock()
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			d.logger.Debug().Msg("Synthesis request cancelled before dispatch")
			if deliver != nil {
				deliver(nil)
			}
			return
		}

		d.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSynthesisStarted,
			Data: map[string]any{
				"text":     sp.Talk.Message,
				"provider": provider.Name(),
			},
		})

		resp, err := provider.Synthesize(ctx, &SynthesizeRequest{
			Text:    sp.Talk.Message,
			Style:   string(sp.Talk.Style),
			VoiceID: voiceID,
			Speed:   speed,
		})

		// The interval floor counts from the end of the round trip, not
		// its start, so a slow provider never causes request pile-up.
		d.mu.Lock()
		d.last = time.Now()
		d.mu.Unlock()

		if err != nil {
			d.logger.Error().Err(err).
				Str("provider", provider.Name()).
				Str("text", sp.Talk.Message).
				Msg("Synthesis failed")
			d.eventBus.Publish(bus.Event{
				Type: bus.EventTypeSynthesisFailed,
				Data: map[string]any{
					"provider": provider.Name(),
					"error":    err.Error(),
				},
			})
			d.eventBus.Publish(bus.Event{
				Type: bus.EventTypeToast,
				Data: map[string]any{
					"message":  "語音合成失敗：" + provider.Name(),
					"severity": "error",
					"duration": 5 * time.Second,
				},
			})
			if deliver != nil {
				deliver(nil)
			}
			return
		}

		if deliver != nil {
			deliver(resp)
		}
	}()

	return done
}
