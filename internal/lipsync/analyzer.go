// Package lipsync derives mouth-open amplitude from playback windows.
package lipsync

import (
	"math"
	"sync"
)

// noiseFloor is the squashed amplitude below which the mouth stays shut.
// Breath and codec hiss otherwise keep the avatar's lips trembling.
const noiseFloor = 0.1

// Analyzer converts audio windows into a smoothed 0..1 mouth value.
// Safe for concurrent use; playback writes, the frame loop reads.
type Analyzer struct {
	mu        sync.Mutex
	amplitude float32
}

// New creates an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Observe ingests one playback window and updates the current amplitude.
// It returns the new value.
func (a *Analyzer) Observe(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}

	// Logistic squash stretches quiet speech into a visible mouth range
	// while saturating loud passages near 1.
	v := float32(1 / (1 + math.Exp(-45*float64(peak)+5)))
	if v < noiseFloor {
		v = 0
	}

	a.mu.Lock()
	a.amplitude = v
	a.mu.Unlock()
	return v
}

// Reset zeroes the amplitude, used when playback stops or clears.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.amplitude = 0
	a.mu.Unlock()
}

// Amplitude returns the most recent mouth value.
func (a *Analyzer) Amplitude() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.amplitude
}
