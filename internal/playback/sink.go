package playback

import (
	"context"
	"time"
)

// Sink consumes a decoded signal in real time. Play blocks until the
// signal has been fully consumed or the context is cancelled.
type Sink interface {
	Play(ctx context.Context, sig *Signal) error
}

// WindowFunc receives each playback window as it becomes current.
type WindowFunc func(samples []float32)

// TickSink paces a signal in real time and hands each fixed-size sample
// window to a callback. It drives lip-sync without touching an audio
// device, which keeps the pipeline headless and testable.
type TickSink struct {
	windowSize int
	onWindow   WindowFunc
}

// NewTickSink creates a sink emitting windows of windowSize samples.
func NewTickSink(windowSize int, onWindow WindowFunc) *TickSink {
	if windowSize <= 0 {
		windowSize = 2048
	}
	return &TickSink{windowSize: windowSize, onWindow: onWindow}
}

// Play walks the signal window by window at the signal's own rate.
func (t *TickSink) Play(ctx context.Context, sig *Signal) error {
	if sig == nil || sig.SampleRate <= 0 {
		return nil
	}

	windowDur := time.Duration(float64(t.windowSize) / float64(sig.SampleRate) * float64(time.Second))
	ticker := time.NewTicker(windowDur)
	defer ticker.Stop()

	for offset := 0; offset < len(sig.Samples); offset += t.windowSize {
		end := offset + t.windowSize
		if end > len(sig.Samples) {
			end = len(sig.Samples)
		}
		if t.onWindow != nil {
			t.onWindow(sig.Samples[offset:end])
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
