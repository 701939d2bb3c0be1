// Package playback provides the ordered utterance queue and audio decode
// path between synthesis and the avatar.
package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/jwlin/voicetalk/internal/tts"
)

// ErrUndecodable marks audio payloads the decode path cannot handle.
var ErrUndecodable = errors.New("undecodable audio payload")

// Signal is decoded mono audio ready for playback and analysis.
type Signal struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the signal length in seconds.
func (s *Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Decode converts a provider audio payload into a playable signal.
func Decode(data []byte, format string, sampleRate int) (*Signal, error) {
	if len(data) == 0 {
		return nil, ErrUndecodable
	}

	switch format {
	case tts.FormatPCM16:
		return decodePCM16(data, sampleRate)
	case tts.FormatWAV:
		return decodeWAV(data)
	case tts.FormatMP3:
		return decodeMP3(data)
	default:
		return nil, fmt.Errorf("%w: format %q", ErrUndecodable, format)
	}
}

// decodePCM16 reinterprets raw little-endian 16-bit mono PCM.
func decodePCM16(data []byte, sampleRate int) (*Signal, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing sample rate for raw PCM", ErrUndecodable)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return &Signal{Samples: samples, SampleRate: sampleRate}, nil
}

func decodeWAV(data []byte) (*Signal, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV container", ErrUndecodable)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read WAV samples: %w", err)
	}

	fbuf := buf.AsFloat32Buffer()
	channels := buf.Format.NumChannels
	if channels <= 1 {
		return &Signal{Samples: fbuf.Data, SampleRate: buf.Format.SampleRate}, nil
	}

	// Downmix to mono by averaging channels.
	frames := len(fbuf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += fbuf.Data[i*channels+c]
		}
		samples[i] = sum / float32(channels)
	}
	return &Signal{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func decodeMP3(data []byte) (*Signal, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read MP3 samples: %w", err)
	}

	// go-mp3 always emits 16-bit stereo frames.
	frames := len(raw) / 4
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		samples[i] = (float32(l) + float32(r)) / 2 / 32768.0
	}
	return &Signal{Samples: samples, SampleRate: dec.SampleRate()}, nil
}
