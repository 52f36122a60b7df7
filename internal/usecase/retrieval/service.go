// Package retrieval selects the chunks handed to answer synthesis.
package retrieval

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain/chunk"
)

// Service embeds a question and picks the best chunks that fit a budget.
type Service struct {
	embedder QueryEmbedder
	searcher Searcher
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(embedder QueryEmbedder, searcher Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, searcher: searcher, logger: logger}
}

// Retrieve returns up to topK chunks, most relevant first, whose combined
// text length stays within budget runes. A chunk that does not fit is
// skipped and smaller ones further down may still be taken.
// ErrEmptyIndex from the searcher is returned unchanged in the chain.
func (s *Service) Retrieve(
	ctx context.Context, question, sessionID string, topK, budget int,
) ([]chunk.Scored, error) {
	vec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.searcher.Search(sessionID, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	selected := Fit(hits, budget)
	s.logger.Debug("Context selected",
		zap.String("session_id", sessionID),
		zap.Int("candidates", len(hits)),
		zap.Int("selected", len(selected)),
		zap.Int("budget", budget),
	)
	return selected, nil
}

// Fit walks hits in rank order and keeps each one whose text still fits.
func Fit(hits []chunk.Scored, budget int) []chunk.Scored {
	out := make([]chunk.Scored, 0, len(hits))
	used := 0
	for _, h := range hits {
		n := utf8.RuneCountInString(h.Text)
		if used+n > budget {
			continue
		}
		used += n
		out = append(out, h)
	}
	return out
}
