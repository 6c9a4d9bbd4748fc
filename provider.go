package workshop

import "context"

// Provider abstracts the chat-completion backend.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatStream streams token events into ch, then returns the final
	// response with any tool calls assembled and usage stats attached.
	// The provider never closes ch; the caller owns the channel.
	ChatStream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error)
	// Name returns the provider name (e.g. "openaicompat").
	Name() string
}
