package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// GoogleProvider implements TTS using the Google Cloud text-to-speech
// REST API. Audio comes back base64 encoded MP3.
type GoogleProvider struct {
	apiKey string
	client *http.Client
	logger zerolog.Logger
	config *GoogleConfig
}

// GoogleConfig holds Google TTS configuration
type GoogleConfig struct {
	APIKey       string        `json:"api_key"`
	DefaultVoice string        `json:"default_voice"` // e.g. cmn-TW-Standard-A
	Timeout      time.Duration `json:"timeout"`
}

// DefaultGoogleConfig returns sensible defaults
func DefaultGoogleConfig() *GoogleConfig {
	return &GoogleConfig{
		DefaultVoice: "cmn-TW-Standard-A",
		Timeout:      30 * time.Second,
	}
}

// NewGoogleProvider creates a new Google TTS provider
func NewGoogleProvider(logger zerolog.Logger, config *GoogleConfig) *GoogleProvider {
	if config == nil {
		config = DefaultGoogleConfig()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_TTS_API_KEY")
	}

	return &GoogleProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "google-tts").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *GoogleProvider) Name() string {
	return "google"
}

// NeedsDecode reports that Google returns MP3 containers.
func (p *GoogleProvider) NeedsDecode() bool {
	return true
}

type googleTTSRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
	} `json:"audioConfig"`
}

type googleTTSResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize converts text to audio using Google Cloud TTS
func (p *GoogleProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("Google TTS API key not configured")
	}

	startTime := time.Now()

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = p.config.DefaultVoice
	}

	var ttsReq googleTTSRequest
	ttsReq.Input.Text = req.Text
	ttsReq.Voice.LanguageCode = "cmn-TW"
	ttsReq.Voice.Name = voiceID
	ttsReq.AudioConfig.AudioEncoding = "MP3"
	ttsReq.AudioConfig.SpeakingRate = req.Speed

	body, err := json.Marshal(ttsReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := "https://texttospeech.googleapis.com/v1/text:synthesize?key=" + p.apiKey
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug().
		Str("voice", voiceID).
		Int("textLen", len(req.Text)).
		Msg("Sending TTS request to Google")

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
			Msg("Google TTS request failed")
		return nil, fmt.Errorf("Google TTS error: status %d", resp.StatusCode)
	}

	var ttsResp googleTTSResponse
	if err := json.NewDecoder(resp.Body).Decode(&ttsResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	audioData, err := base64.StdEncoding.DecodeString(ttsResp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if len(audioData) == 0 {
		return nil, ErrInvalidAudio
	}

	processingTime := time.Since(startTime)

	p.logger.Info().
		Str("voice", voiceID).
		Int("audioBytes", len(audioData)).
		Dur("processingTime", processingTime).
		Msg("Google TTS synthesis complete")

	return &SynthesizeResponse{
		Audio:          audioData,
		Format:         FormatMP3,
		SampleRate:     24000,
		Provider:       p.Name(),
		ProcessingTime: processingTime,
	}, nil
}
