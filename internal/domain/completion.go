package domain

import "context"

// Completer sends a single prompt to a chat completion model.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest is one system instruction plus one user prompt.
type CompletionRequest struct {
	System string
	Prompt string
}

// CompletionResult carries the model reply and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
