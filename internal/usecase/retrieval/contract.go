package retrieval

import (
	"context"

	"github.com/kailas-cloud/storyrag/internal/domain/chunk"
)

// QueryEmbedder vectorizes a question.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher ranks a session's chunks against a query vector.
type Searcher interface {
	Search(sessionID string, query []float32, k int) ([]chunk.Scored, error)
}
