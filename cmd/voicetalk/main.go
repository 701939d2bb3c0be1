// voicetalk is a voice-first intake agent. It streams model replies
// through sentence segmentation, synthesis and ordered playback, serves
// avatar render frames over websocket, and walks the user through a
// guided profile flow.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jwlin/voicetalk/internal/avatar"
	"github.com/jwlin/voicetalk/internal/bus"
	"github.com/jwlin/voicetalk/internal/config"
	"github.com/jwlin/voicetalk/internal/llm"
	"github.com/jwlin/voicetalk/internal/logging"
	"github.com/jwlin/voicetalk/internal/pipeline"
	"github.com/jwlin/voicetalk/internal/profile"
	"github.com/jwlin/voicetalk/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	log := logger.Zerolog()

	eventBus := bus.NewEventBus()

	provider := buildProvider(log, &cfg.TTS)
	dispatcher := tts.NewDispatcher(log, eventBus, provider, cfg.Pipeline.MinRequestInterval)
	dispatcher.SetVoice(cfg.TTS.VoiceID, cfg.TTS.Speed)

	store, err := profile.NewStore(log, cfg.Storage.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Open profile store failed")
	}
	defer store.Close()

	var streamer llm.Streamer
	if os.Getenv("OPENAI_API_KEY") != "" {
		streamer = llm.NewOpenAIStreamer(log, "", "")
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, using scripted replies")
		streamer = llm.NewMockStreamer(
			"好的，我可以稱呼您是林先生。",
			"好的，您的性別是男生。",
			"好的，您今年57歲",
			"好的，您的身高是170公分",
			"好的，您的體重是65公斤",
			"好的，資料正確，已為您送出。",
			"好的，您的選擇是1。",
		)
	}

	pipe := pipeline.New(log, eventBus, cfg, dispatcher, streamer, store)
	defer pipe.Close()

	hub := avatar.NewHub(log, eventBus, cfg.Server.Addr, pipe.Amplitude)
	hub.Start()
	defer hub.Close()

	watcher, err := config.NewWatcher(log, func(next *config.Config) {
		dispatcher.SetProvider(buildProvider(log, &next.TTS))
		dispatcher.SetVoice(next.TTS.VoiceID, next.TTS.Speed)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer watcher.Close()
	}

	eventBus.Subscribe(bus.EventTypeListenRequested, func(bus.Event) {
		fmt.Print("> ")
	})
	eventBus.Subscribe(bus.EventTypeTranscript, func(e bus.Event) {
		if e.Data["role"] == "assistant" {
			fmt.Printf("%s\n", e.Data["text"])
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe.Start()
	log.Info().Str("provider", provider.Name()).Msg("voicetalk started")

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err := pipe.HandleUserText(ctx, text); err != nil {
				log.Error().Err(err).Msg("Turn failed")
			}
		}
		cancel()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	log.Info().Msg("voicetalk shutting down")
}

// buildProvider selects the active synthesis backend from configuration.
func buildProvider(log zerolog.Logger, cfg *config.TTSConfig) tts.Provider {
	switch cfg.Provider {
	case "azure":
		return tts.NewAzureProvider(log, &tts.AzureConfig{
			APIKey:       cfg.AzureAPIKey,
			Region:       cfg.AzureRegion,
			DefaultVoice: cfg.AzureVoice,
			Timeout:      cfg.Timeout,
		})
	case "google":
		return tts.NewGoogleProvider(log, &tts.GoogleConfig{
			APIKey:       cfg.GoogleAPIKey,
			DefaultVoice: cfg.GoogleVoice,
			Timeout:      cfg.Timeout,
		})
	case "elevenlabs":
		return tts.NewElevenLabsProvider(log, &tts.ElevenLabsConfig{
			APIKey:       cfg.ElevenLabsAPIKey,
			DefaultVoice: cfg.ElevenLabsVoice,
			Timeout:      cfg.Timeout,
		})
	default:
		return tts.NewOpenAIProvider(log, &tts.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			DefaultVoice: cfg.VoiceID,
			Speed:        cfg.Speed,
			Timeout:      cfg.Timeout,
		})
	}
}
