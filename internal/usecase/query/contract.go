package query

import (
	"context"

	"github.com/kailas-cloud/storyrag/internal/domain/chunk"
	"github.com/kailas-cloud/storyrag/internal/usecase/answer"
)

// Retriever selects context chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question, sessionID string, topK, budget int) ([]chunk.Scored, error)
}

// Synthesizer turns context chunks into an answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, chunks []chunk.Scored) (answer.Result, error)
}

// Sessions validates the target session.
type Sessions interface {
	Exists(sessionID string) error
}
