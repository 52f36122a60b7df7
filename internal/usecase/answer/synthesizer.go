// Package answer asks the completion model to answer from retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/chunk"
	"github.com/kailas-cloud/storyrag/internal/resilience"
)

// NotFound is the reply when the context does not hold the answer.
const NotFound = "not found in the provided text"

const chunkSeparator = "\n\n---\n\n"

const systemPrompt = "You answer questions about the user's stories. " +
	"Use only the context between the separators; do not use outside knowledge. " +
	"If the context does not contain the answer, reply exactly: " + NotFound + "."

// Citation is one chunk the answer was grounded on.
type Citation struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64
}

// Result is a synthesized answer. ChunkIDs and Scores are aligned, most relevant first.
type Result struct {
	Answer    string
	ChunkIDs  []string
	Scores    []float64
	Citations []Citation
}

// Synthesizer builds the grounded prompt and runs one completion.
type Synthesizer struct {
	completer Completer
	retry     resilience.Policy
	throttle  *resilience.Throttle
	logger    *zap.Logger
}

// New creates a Synthesizer. throttle may be nil.
func New(c Completer, retry resilience.Policy, throttle *resilience.Throttle, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{completer: c, retry: retry, throttle: throttle, logger: logger}
}

// Synthesize answers question from chunks. Citations keep the chunk order.
// With no chunks the model is not called and the answer is NotFound.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []chunk.Scored) (Result, error) {
	res := Result{
		ChunkIDs:  make([]string, len(chunks)),
		Scores:    make([]float64, len(chunks)),
		Citations: make([]Citation, len(chunks)),
	}
	for i, c := range chunks {
		res.ChunkIDs[i] = c.ID
		res.Scores[i] = c.Score
		res.Citations[i] = Citation{ChunkID: c.ID, DocumentID: c.DocumentID, Text: c.Text, Score: c.Score}
	}
	if len(chunks) == 0 {
		res.Answer = NotFound
		return res, nil
	}

	req := domain.CompletionRequest{System: systemPrompt, Prompt: BuildPrompt(question, chunks)}
	start := time.Now()
	out, err := resilience.Do(ctx, s.retry, func(ctx context.Context, attempt int) (domain.CompletionResult, error) {
		release, err := s.throttle.Acquire(ctx)
		if err != nil {
			return domain.CompletionResult{}, err
		}
		defer release()

		out, err := s.completer.Complete(ctx, req)
		if err != nil && resilience.Retryable(err) {
			s.logger.Warn("Completion failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}
		return out, err
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}

	s.logger.Debug("Answer synthesized",
		zap.Int("chunks", len(chunks)),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
		zap.Duration("duration", time.Since(start)),
	)
	res.Answer = out.Text
	return res, nil
}

// BuildPrompt lays the chunks out verbatim in order, then the question.
func BuildPrompt(question string, chunks []chunk.Scored) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, c := range chunks {
		if i > 0 {
			b.WriteString(chunkSeparator)
		}
		b.WriteString(c.Text)
	}
	b.WriteString(chunkSeparator)
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
