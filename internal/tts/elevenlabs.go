package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ElevenLabsProvider implements TTS using the ElevenLabs API. It requests
// pcm_24000 output so responses bypass the decode step.
type ElevenLabsProvider struct {
	apiKey string
	client *http.Client
	logger zerolog.Logger
	config *ElevenLabsConfig
}

// ElevenLabsConfig holds ElevenLabs configuration
type ElevenLabsConfig struct {
	APIKey       string        `json:"api_key"`
	DefaultVoice string        `json:"default_voice"`
	ModelID      string        `json:"model_id"`
	Timeout      time.Duration `json:"timeout"`
}

// DefaultElevenLabsConfig returns sensible defaults
func DefaultElevenLabsConfig() *ElevenLabsConfig {
	return &ElevenLabsConfig{
		DefaultVoice: "21m00Tcm4TlvDq8ikWAM",
		ModelID:      "eleven_multilingual_v2",
		Timeout:      30 * time.Second,
	}
}

// NewElevenLabsProvider creates a new ElevenLabs TTS provider
func NewElevenLabsProvider(logger zerolog.Logger, config *ElevenLabsConfig) *ElevenLabsProvider {
	if config == nil {
		config = DefaultElevenLabsConfig()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}

	return &ElevenLabsProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "elevenlabs-tts").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

// NeedsDecode reports that ElevenLabs responses are already raw PCM.
func (p *ElevenLabsProvider) NeedsDecode() bool {
	return false
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
}

// Synthesize converts text to audio using ElevenLabs
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key not configured")
	}

	startTime := time.Now()

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = p.config.DefaultVoice
	}

	ttsReq := elevenLabsRequest{
		Text:    req.Text,
		ModelID: p.config.ModelID,
		VoiceSettings: elevenLabsSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           styleExaggeration(req.Style),
		},
	}

	body, err := json.Marshal(ttsReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s?output_format=pcm_24000", voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug().
		Str("voice", voiceID).
		Str("style", req.Style).
		Int("textLen", len(req.Text)).
		Msg("Sending TTS request to ElevenLabs")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		p.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(bodyBytes)).
			Msg("ElevenLabs TTS request failed")
		return nil, fmt.Errorf("ElevenLabs TTS error: status %d", resp.StatusCode)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(audioData) == 0 {
		return nil, ErrInvalidAudio
	}

	processingTime := time.Since(startTime)

	p.logger.Info().
		Str("voice", voiceID).
		Int("audioBytes", len(audioData)).
		Dur("processingTime", processingTime).
		Msg("ElevenLabs TTS synthesis complete")

	return &SynthesizeResponse{
		Audio:          audioData,
		Format:         FormatPCM16,
		SampleRate:     24000,
		Provider:       p.Name(),
		ProcessingTime: processingTime,
	}, nil
}

// styleExaggeration maps a talk style to the voice style parameter.
func styleExaggeration(style string) float64 {
	switch style {
	case "happy", "angry":
		return 0.4
	case "sad":
		return 0.3
	default:
		return 0
	}
}
