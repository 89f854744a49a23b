// Package llm holds the chat clients used for keyword extraction.
package llm

import "context"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chatter sends a conversation to a model and returns the reply text.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []Message) (string, error)
}
