package provider

import "context"

// FakeProvider returns a canned response or error. Test helper.
type FakeProvider struct {
	ResponseText string
	Error        error
}

func NewFake(response string) *FakeProvider {
	return &FakeProvider{ResponseText: response}
}

func (f *FakeProvider) ChatCompletion(ctx context.Context, req *Request) (*Response, error) {
	if f.Error != nil {
		return nil, f.Error
	}
	return &Response{
		Message: Message{Role: "assistant", Content: f.ResponseText},
		Usage:   Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
	}, nil
}
