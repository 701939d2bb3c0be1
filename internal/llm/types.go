// Package llm defines the chat model contract the pipeline consumes.
package llm

import "context"

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Streamer yields a model reply as ordered text increments. The channel
// closes at end of stream; errors after the first increment surface as an
// early close.
type Streamer interface {
	Stream(ctx context.Context, messages []Message) (<-chan string, error)
}
