// Package llm abstracts the chat-completion capability the pipeline consumes.
// The core only ever needs "chat(messages, config) → text"; provider details
// stay behind the Provider interface.
package llm

import "context"

// Message is one chat message in provider wire order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config tunes a single chat call.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response is the text a provider returned for one chat call.
type Response struct {
	Content string
}

// Provider is a synchronous chat-completion backend.
type Provider interface {
	// Chat sends the conversation and returns the assistant's reply.
	Chat(ctx context.Context, messages []Message, config Config) (*Response, error)
	// Name identifies the provider in logs.
	Name() string
}
