// Package pipeline wires the speech path: streamed model text in,
// ordered audio playback and dialogue transitions out.
package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwlin/voicetalk/internal/bus"
	"github.com/jwlin/voicetalk/internal/config"
	"github.com/jwlin/voicetalk/internal/dialog"
	"github.com/jwlin/voicetalk/internal/lipsync"
	"github.com/jwlin/voicetalk/internal/llm"
	"github.com/jwlin/voicetalk/internal/playback"
	"github.com/jwlin/voicetalk/internal/profile"
	"github.com/jwlin/voicetalk/internal/screenplay"
	"github.com/jwlin/voicetalk/internal/segment"
	"github.com/jwlin/voicetalk/internal/tts"
	"github.com/jwlin/voicetalk/internal/turn"
)

// ProfileStore persists completed intake records.
type ProfileStore interface {
	Save(ctx context.Context, p *profile.Profile) error
}

// Pipeline owns one conversation timeline: a single active text stream,
// one playback queue and one dialogue machine.
type Pipeline struct {
	cfg        *config.Config
	dispatcher *tts.Dispatcher
	queue      *playback.Queue
	counter    *turn.Counter
	analyzer   *lipsync.Analyzer
	machine    *dialog.Machine
	streamer   llm.Streamer
	store      ProfileStore

	turnMu sync.Mutex // serializes turn ingestion

	exprMu   sync.Mutex
	prevExpr screenplay.EmotionTag

	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// New assembles the pipeline around an already-configured dispatcher.
func New(logger zerolog.Logger, eventBus *bus.EventBus, cfg *config.Config,
	dispatcher *tts.Dispatcher, streamer llm.Streamer, store ProfileStore) *Pipeline {

	p := &Pipeline{
		cfg:        cfg,
		dispatcher: dispatcher,
		counter:    turn.NewCounter(),
		analyzer:   lipsync.New(),
		streamer:   streamer,
		store:      store,
		prevExpr:   screenplay.EmotionNeutral,
		eventBus:   eventBus,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}

	sink := playback.NewTickSink(cfg.Pipeline.TickWindow, func(samples []float32) {
		p.analyzer.Observe(samples)
	})
	p.queue = playback.NewQueue(logger, eventBus, sink)

	p.machine = dialog.NewMachine(logger, eventBus, cfg.Dialogue.IntroPrompt, dialog.Callbacks{
		Prompt: func(text string) {
			go p.speakText(context.Background(), text, false)
		},
		Submit: p.submitProfile,
	})

	return p
}

// Start launches playback and opens the dialogue with its first question.
func (p *Pipeline) Start() {
	p.queue.Start()
	p.machine.Start()
}

// Close stops playback. Pending utterances complete as cancelled.
func (p *Pipeline) Close() {
	p.queue.Close()
	p.analyzer.Reset()
}

// Amplitude exposes the current lip-sync value for the render feed.
func (p *Pipeline) Amplitude() float32 {
	return p.analyzer.Amplitude()
}

// Machine exposes the dialogue state machine, read-only use intended.
func (p *Pipeline) Machine() *dialog.Machine {
	return p.machine
}

// HandleUserText runs one full model turn for the user's utterance.
// Ongoing non-protected speech is cut off first; the user interrupting
// always wins over queued commentary.
func (p *Pipeline) HandleUserText(ctx context.Context, text string) error {
	p.queue.Clear()
	p.analyzer.Reset()

	p.eventBus.Publish(bus.Event{
		Type: bus.EventTypeTranscript,
		Data: map[string]any{"role": "user", "text": text},
	})

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: llm.SystemPrompt(p.machine.Current())},
		{Role: llm.RoleUser, Content: text},
	}

	stream, err := p.streamer.Stream(ctx, messages)
	if err != nil {
		p.logger.Error().Err(err).Msg("Chat stream failed to start")
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeToast,
			Data: map[string]any{"message": "無法取得回覆，請再試一次", "severity": "error"},
		})
		return err
	}

	p.runTurn(ctx, stream, true)
	return nil
}

// Announce speaks a system announcement that Clear must not interrupt.
func (p *Pipeline) Announce(ctx context.Context, text string) {
	p.speakText(ctx, text, true)
}

// speakText runs a single-utterance turn for machine prompts and
// announcements.
func (p *Pipeline) speakText(ctx context.Context, text string, protected bool) {
	stream := make(chan string, 1)
	stream <- text
	close(stream)
	p.runTurnProtected(ctx, stream, false, protected)
}

func (p *Pipeline) runTurn(ctx context.Context, stream <-chan string, isResponse bool) {
	p.runTurnProtected(ctx, stream, isResponse, false)
}

// runTurnProtected ingests one text stream as a turn: segment, compile,
// dispatch. It returns once the stream is consumed; playback continues in
// the background and the turn resolves when the counter returns to zero.
func (p *Pipeline) runTurnProtected(ctx context.Context, stream <-chan string, isResponse, protected bool) {
	p.turnMu.Lock()
	defer p.turnMu.Unlock()

	p.eventBus.Publish(bus.Event{Type: bus.EventTypeTurnStarted})

	seg := segment.New(p.cfg.Pipeline.CommaBreakRunes)
	for chunk := range stream {
		p.handleResult(ctx, seg.Push(chunk), isResponse, protected)
		if ctx.Err() != nil {
			break
		}
	}
	p.handleResult(ctx, seg.Flush(), isResponse, protected)

	// All increments for this turn are in. Transient zeros earlier in
	// the stream do not count; only this watch resolves the turn.
	watch := p.counter.Watch()
	go func() {
		<-watch
		p.turnComplete(isResponse)
	}()
}

func (p *Pipeline) handleResult(ctx context.Context, res segment.Result, isResponse, protected bool) {
	for _, code := range res.Code {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeCodeBlock,
			Data: map[string]any{"code": code},
		})
	}

	for _, unit := range res.Sentences {
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSentenceEmitted,
			Data: map[string]any{"text": unit.Text, "tag": unit.Tag},
		})
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeTranscript,
			Data: map[string]any{"role": "assistant", "text": unit.Text},
		})

		if !unit.Speakable {
			continue
		}
		p.speakUnit(ctx, unit, isResponse, protected)
	}
}

// speakUnit compiles and dispatches one sentence. The turn counter is
// incremented here and decremented exactly once when the playback slot
// completes, whatever happened in between.
func (p *Pipeline) speakUnit(ctx context.Context, unit segment.SentenceUnit, isResponse, protected bool) {
	p.exprMu.Lock()
	sp := screenplay.Compile(unit, p.prevExpr)
	p.prevExpr = sp.Expression
	p.exprMu.Unlock()

	p.counter.Increment()

	p.dispatcher.Speak(ctx, sp, func(resp *tts.SynthesizeResponse) {
		task := &playback.Task{
			Screenplay: sp,
			Protected:  protected,
			OnComplete: func(cancelled bool) {
				if !cancelled && isResponse {
					p.machine.HandleParaphrase(sp.Talk.Message)
				}
				p.counter.Decrement()
			},
		}
		if resp != nil {
			task.Audio = resp.Audio
			task.Format = resp.Format
			task.SampleRate = resp.SampleRate
		}
		p.queue.Enqueue(task)
	})
}

// turnComplete fires once per turn when every queued utterance has left
// the playback queue.
func (p *Pipeline) turnComplete(isResponse bool) {
	p.analyzer.Reset()
	p.eventBus.Publish(bus.Event{Type: bus.EventTypeTurnComplete})

	if isResponse && isBareSlot(p.machine.Current()) {
		// The whole reply played without matching the slot template.
		p.machine.MarkError()
	}
	p.machine.HandleTurnComplete()
}

func (p *Pipeline) submitProfile(fields map[string]string) {
	rec, err := profile.FromFields(fields)
	if err != nil {
		p.logger.Error().Err(err).Msg("Collected fields failed validation")
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeToast,
			Data: map[string]any{"message": "資料格式有誤，請重新確認", "severity": "error"},
		})
		return
	}

	if p.store == nil {
		return
	}
	if err := p.store.Save(context.Background(), rec); err != nil {
		p.logger.Error().Err(err).Msg("Profile save failed")
		p.eventBus.Publish(bus.Event{
			Type: bus.EventTypeToast,
			Data: map[string]any{"message": "資料儲存失敗", "severity": "error"},
		})
	}
}

func isBareSlot(s dialog.State) bool {
	return s != dialog.StateDone &&
		!strings.HasSuffix(string(s), "Obtained") &&
		!strings.HasSuffix(string(s), "Error")
}
