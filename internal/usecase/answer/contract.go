package answer

import (
	"context"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

// Completer sends one prompt to the completion model.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error)
}
