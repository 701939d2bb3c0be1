// Package turn tracks outstanding speech work within one assistant turn.
package turn

import "sync"

// Counter counts utterances in flight for the current turn. It increments
// when a sentence is handed to synthesis and decrements when its playback
// slot completes. Watchers fire once when the count returns to zero.
type Counter struct {
	mu       sync.Mutex
	count    int
	watchers []chan struct{}
}

// NewCounter creates a Counter at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// Increment marks one more utterance in flight.
func (c *Counter) Increment() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

// Decrement marks one utterance done. The count never goes below zero;
// a stray completion after a clear must not wedge the next turn.
func (c *Counter) Decrement() {
	c.mu.Lock()
	var fire []chan struct{}
	if c.count > 0 {
		c.count--
	}
	if c.count == 0 && len(c.watchers) > 0 {
		fire = c.watchers
		c.watchers = nil
	}
	c.mu.Unlock()

	for _, ch := range fire {
		close(ch)
	}
}

// Count returns the current in-flight count.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Watch returns a channel closed the next time the count reaches zero.
// If the count is already zero the channel is closed immediately.
func (c *Counter) Watch() <-chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	if c.count == 0 {
		close(ch)
	} else {
		c.watchers = append(c.watchers, ch)
	}
	c.mu.Unlock()
	return ch
}
