package core

import "context"

// CompletionRequest is one chat-style request to a language model.
type CompletionRequest struct {
	System      string
	User        string
	Model       string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
