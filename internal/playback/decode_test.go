package playback

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlin/voicetalk/internal/tts"
)

func TestDecodePCM16(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(0)))
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(16384)))
	negFull := int16(-32768)
	binary.LittleEndian.PutUint16(data[4:], uint16(negFull))

	sig, err := Decode(data, tts.FormatPCM16, 16000)
	require.NoError(t, err)
	require.Len(t, sig.Samples, 3)

	assert.InDelta(t, 0.0, sig.Samples[0], 1e-6)
	assert.InDelta(t, 0.5, sig.Samples[1], 1e-6)
	assert.InDelta(t, -1.0, sig.Samples[2], 1e-6)
	assert.Equal(t, 16000, sig.SampleRate)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	_, err := Decode(nil, tts.FormatPCM16, 16000)
	assert.ErrorIs(t, err, ErrUndecodable)

	_, err = Decode([]byte{1, 2}, tts.FormatPCM16, 0)
	assert.ErrorIs(t, err, ErrUndecodable)

	_, err = Decode([]byte{1, 2, 3, 4}, "ogg", 16000)
	assert.ErrorIs(t, err, ErrUndecodable)

	_, err = Decode([]byte("not a wav file"), tts.FormatWAV, 0)
	assert.ErrorIs(t, err, ErrUndecodable)
}

func TestSignalDuration(t *testing.T) {
	sig := &Signal{Samples: make([]float32, 16000), SampleRate: 16000}
	assert.InDelta(t, 1.0, sig.Duration(), 1e-9)

	empty := &Signal{}
	assert.Zero(t, empty.Duration())
}

func TestTickSinkWalksWindows(t *testing.T) {
	var windows [][]float32
	sink := NewTickSink(4, func(samples []float32) {
		cp := make([]float32, len(samples))
		copy(cp, samples)
		windows = append(windows, cp)
	})

	sig := &Signal{Samples: make([]float32, 10), SampleRate: 48000}
	err := sink.Play(context.Background(), sig)
	require.NoError(t, err)

	require.Len(t, windows, 3)
	assert.Len(t, windows[0], 4)
	assert.Len(t, windows[1], 4)
	assert.Len(t, windows[2], 2, "trailing partial window is delivered")
}

func TestTickSinkHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := NewTickSink(2048, nil)
	sig := &Signal{Samples: make([]float32, 1 << 20), SampleRate: 8000}

	start := time.Now()
	err := sink.Play(ctx, sig)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancelled playback must return promptly")
}
