package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// AzureProvider implements TTS using Azure Cognitive Services. It requests
// raw PCM output so responses bypass the decode step entirely.
type AzureProvider struct {
	apiKey string
	client *http.Client
	logger zerolog.Logger
	config *AzureConfig
}

// AzureConfig holds Azure speech configuration
type AzureConfig struct {
	APIKey       string        `json:"api_key"`
	Region       string        `json:"region"`
	DefaultVoice string        `json:"default_voice"` // e.g. zh-TW-HsiaoChenNeural
	Timeout      time.Duration `json:"timeout"`
}

// DefaultAzureConfig returns sensible defaults
func DefaultAzureConfig() *AzureConfig {
	return &AzureConfig{
		Region:       "eastasia",
		DefaultVoice: "zh-TW-HsiaoChenNeural",
		Timeout:      30 * time.Second,
	}
}

// NewAzureProvider creates a new Azure TTS provider
func NewAzureProvider(logger zerolog.Logger, config *AzureConfig) *AzureProvider {
	if config == nil {
		config = DefaultAzureConfig()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_SPEECH_KEY")
	}

	return &AzureProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "azure-tts").Logger(),
		config: config,
	}
}

// Name returns the provider identifier
func (p *AzureProvider) Name() string {
	return "azure"
}

// NeedsDecode reports that Azure responses are already raw PCM.
func (p *AzureProvider) NeedsDecode() bool {
	return false
}

// Synthesize converts text to audio using the Azure REST endpoint
func (p *AzureProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("Azure speech key not configured")
	}

	startTime := time.Now()

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = p.config.DefaultVoice
	}

	ssml := fmt.Sprintf(
		`<speak version='1.0' xml:lang='zh-TW'><voice name='%s'>%s</voice></speak>`,
		voiceID, escapeXML(req.Text))

	endpoint := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", p.config.Region)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader([]byte(ssml)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", "raw-16khz-16bit-mono-pcm")

	p.logger.Debug().
		Str("voice", voiceID).
		Int("textLen", len(req.Text)).
		Msg("Sending TTS request to Azure")

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
			Msg("Azure TTS request failed")
		return nil, fmt.Errorf("Azure TTS error: status %d", resp.StatusCode)
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
		Msg("Azure TTS synthesis complete")

	return &SynthesizeResponse{
		Audio:          audioData,
		Format:         FormatPCM16,
		SampleRate:     16000,
		Provider:       p.Name(),
		ProcessingTime: processingTime,
	}, nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '\'':
			buf.WriteString("&apos;")
		case '"':
			buf.WriteString("&quot;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
