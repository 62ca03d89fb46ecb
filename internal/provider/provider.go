// Package provider abstracts the chat-completion backend used by the
// hybrid context labeler. Only hybrid mode touches it; the pattern and
// crisis paths have no dependency on any LLM.
package provider

import "context"

// Message is a normalized chat message.
type Message struct {
	Role    string
	Content string
}

// Request is a normalized chat-completion request.
type Request struct {
	Model    string
	Messages []Message
}

// Usage holds token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a normalized chat-completion response.
type Response struct {
	Message Message
	Usage   Usage
}

// Provider is the interface for chat-completion backends.
type Provider interface {
	ChatCompletion(ctx context.Context, req *Request) (*Response, error)
}
