package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlin/voicetalk/internal/bus"
	"github.com/jwlin/voicetalk/internal/config"
	"github.com/jwlin/voicetalk/internal/dialog"
	"github.com/jwlin/voicetalk/internal/llm"
	"github.com/jwlin/voicetalk/internal/profile"
	"github.com/jwlin/voicetalk/internal/tts"
)

// stubProvider returns tiny raw PCM clips, or fails on demand.
type stubProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (s *stubProvider) Name() string      { return "stub" }
func (s *stubProvider) NeedsDecode() bool { return false }

func (s *stubProvider) Synthesize(context.Context, *tts.SynthesizeRequest) (*tts.SynthesizeResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fail {
		return nil, errors.New("synthesis backend down")
	}
	return &tts.SynthesizeResponse{
		Audio:      make([]byte, 64),
		Format:     tts.FormatPCM16,
		SampleRate: 16000,
		Provider:   s.Name(),
	}, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memStore struct {
	mu    sync.Mutex
	saved []*profile.Profile
}

func (m *memStore) Save(_ context.Context, p *profile.Profile) error {
	m.mu.Lock()
	m.saved = append(m.saved, p)
	m.mu.Unlock()
	return nil
}

func newTestPipeline(t *testing.T, provider tts.Provider, store ProfileStore, replies ...string) (*Pipeline, *bus.EventBus) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Pipeline.MinRequestInterval = time.Millisecond
	cfg.Pipeline.TickWindow = 256

	eventBus := bus.NewEventBus()
	dispatcher := tts.NewDispatcher(zerolog.Nop(), eventBus, provider, cfg.Pipeline.MinRequestInterval)
	streamer := llm.NewMockStreamer(replies...)

	p := New(zerolog.Nop(), eventBus, cfg, dispatcher, streamer, store)
	t.Cleanup(p.Close)
	return p, eventBus
}

func TestTurnResolvesDespiteSynthesisFailure(t *testing.T) {
	provider := &stubProvider{fail: true}
	p, eventBus := newTestPipeline(t, provider, nil, "好的，我可以稱呼您是林先生。")

	toasts := make(chan bus.Event, 8)
	eventBus.Subscribe(bus.EventTypeToast, func(e bus.Event) {
		select {
		case toasts <- e:
		default:
		}
	})

	p.Start()

	require.Eventually(t, func() bool {
		return p.Machine().Current() == dialog.State(dialog.SlotName)
	}, 3*time.Second, 10*time.Millisecond, "intro turn never settled")

	require.NoError(t, p.HandleUserText(context.Background(), "我叫林先生"))

	// The reply's audio never materializes, but the turn still resolves
	// and the slot still advances off the spoken-text judgment.
	require.Eventually(t, func() bool {
		return p.Machine().Current() == dialog.State(dialog.SlotSex)
	}, 3*time.Second, 10*time.Millisecond, "turn did not resolve after synthesis failure")

	select {
	case e := <-toasts:
		assert.Equal(t, "error", e.Data["severity"])
	case <-time.After(3 * time.Second):
		t.Fatal("no failure toast published")
	}

	assert.Greater(t, provider.callCount(), 0)
	assert.Zero(t, p.Amplitude(), "amplitude resets once the turn resolves")
}

func TestFullIntakeFlow(t *testing.T) {
	provider := &stubProvider{}
	store := &memStore{}
	p, _ := newTestPipeline(t, provider, store,
		"好的，我可以稱呼您是林先生。",
		"好的，您的性別是男生。",
		"好的，您今年57歲",
		"好的，您的身高是170公分",
		"好的，您的體重是65公斤",
		"好的，資料正確，已為您送出。",
		"好的，您的選擇是1。",
	)

	p.Start()
	require.Eventually(t, func() bool {
		return p.Machine().Current() == dialog.State(dialog.SlotName)
	}, 5*time.Second, 10*time.Millisecond)

	steps := []struct {
		userText string
		want     dialog.State
	}{
		{"我叫林先生", dialog.State(dialog.SlotSex)},
		{"我是男生", dialog.State(dialog.SlotAge)},
		{"57歲", dialog.State(dialog.SlotHeight)},
		{"170", dialog.State(dialog.SlotWeight)},
		{"65公斤", dialog.State(dialog.SlotConfirm)},
		{"正確", dialog.State(dialog.SlotTopic)},
		{"第一個", dialog.StateDone},
	}

	ctx := context.Background()
	for _, step := range steps {
		require.NoError(t, p.HandleUserText(ctx, step.userText))
		require.Eventually(t, func() bool {
			return p.Machine().Current() == step.want
		}, 5*time.Second, 10*time.Millisecond, "stuck before %s", step.want)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.saved, 1)
	rec := store.saved[0]
	assert.Equal(t, "林先生", rec.Name)
	assert.Equal(t, "M", rec.Sex)
	assert.Equal(t, 57, rec.Age)
	assert.Equal(t, 170, rec.Height)
	assert.Equal(t, 65, rec.Weight)
}

func TestCodeBlocksNeverReachSynthesis(t *testing.T) {
	provider := &stubProvider{}
	p, eventBus := newTestPipeline(t, provider, nil,
		"範例如下。```x := 1\n```就這樣。")

	codeCh := make(chan bus.Event, 2)
	eventBus.Subscribe(bus.EventTypeCodeBlock, func(e bus.Event) {
		select {
		case codeCh <- e:
		default:
		}
	})

	started := make(chan bus.Event, 16)
	eventBus.Subscribe(bus.EventTypeSynthesisStarted, func(e bus.Event) {
		select {
		case started <- e:
		default:
		}
	})

	p.Start()
	require.Eventually(t, func() bool {
		return p.Machine().Current() == dialog.State(dialog.SlotName)
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, p.HandleUserText(context.Background(), "給我一段範例"))

	select {
	case e := <-codeCh:
		assert.Equal(t, "x := 1\n", e.Data["code"])
	case <-time.After(3 * time.Second):
		t.Fatal("code block never published")
	}

	// Drain synthesis starts long enough to cover the turn; none may
	// carry fence content.
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case e := <-started:
			assert.NotContains(t, e.Data["text"], "```")
			assert.NotContains(t, e.Data["text"], "x := 1")
		case <-deadline:
			return
		}
	}
}
