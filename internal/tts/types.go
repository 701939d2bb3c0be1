// Package tts provides text-to-speech synthesis for voicetalk.
package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("TTS provider unavailable")
	ErrInvalidAudio        = errors.New("provider returned invalid audio")
)

// Audio formats carried in a SynthesizeResponse.
const (
	FormatPCM16 = "pcm16" // raw little-endian 16-bit mono PCM
	FormatWAV   = "wav"
	FormatMP3   = "mp3"
)

// Provider is the interface all TTS providers must implement
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "azure")
	Name() string

	// Synthesize converts text to audio
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// NeedsDecode reports whether the provider returns container-encoded
	// audio that must be decoded before playback. Providers that emit raw
	// PCM return false.
	NeedsDecode() bool
}

// SynthesizeRequest represents a synthesis request
type SynthesizeRequest struct {
	Text    string  `json:"text"`
	Style   string  `json:"style,omitempty"` // talk, happy, angry, sad
	VoiceID string  `json:"voice_id,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
}

// SynthesizeResponse represents a synthesis result
type SynthesizeResponse struct {
	Audio          []byte        `json:"audio"`
	Format         string        `json:"format"`
	SampleRate     int           `json:"sample_rate"`
	Provider       string        `json:"provider"`
	ProcessingTime time.Duration `json:"processing_time"`
}
