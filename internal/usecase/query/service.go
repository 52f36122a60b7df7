// Package query answers questions against a session's documents.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/metrics"
	"github.com/kailas-cloud/storyrag/internal/usecase/answer"
)

// MaxQuestionLength caps the question in characters.
const MaxQuestionLength = 2000

// Service is the question answering entry point.
type Service struct {
	sessions    Sessions
	retriever   Retriever
	synthesizer Synthesizer
	topK        int
	budget      int
	logger      *zap.Logger
}

// New creates a query service.
func New(sessions Sessions, r Retriever, s Synthesizer, cfg domain.RAGConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:    sessions,
		retriever:   r,
		synthesizer: s,
		topK:        cfg.TopK,
		budget:      cfg.ContextBudget,
		logger:      logger,
	}
}

// AnswerQuestion retrieves context from the session and synthesizes an answer.
// A session without documents yields ErrEmptyIndex.
func (s *Service) AnswerQuestion(ctx context.Context, sessionID, question string) (answer.Result, error) {
	start := time.Now()
	res, err := s.answer(ctx, sessionID, question)
	metrics.QuestionsTotal.WithLabelValues(status(err)).Inc()

	if err != nil {
		return answer.Result{}, domain.NewScopeError("answer", sessionID, "", err)
	}
	s.logger.Info("Question answered",
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(res.ChunkIDs)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (s *Service) answer(ctx context.Context, sessionID, question string) (answer.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return answer.Result{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if len([]rune(question)) > MaxQuestionLength {
		return answer.Result{}, fmt.Errorf("%w: question longer than %d characters", domain.ErrInvalidInput, MaxQuestionLength)
	}
	if err := s.sessions.Exists(sessionID); err != nil {
		return answer.Result{}, err
	}

	chunks, err := s.retriever.Retrieve(ctx, question, sessionID, s.topK, s.budget)
	if err != nil {
		return answer.Result{}, err
	}
	return s.synthesizer.Synthesize(ctx, question, chunks)
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEmptyIndex):
		return "empty_index"
	case domain.IsInputError(err):
		return "rejected"
	default:
		return "error"
	}
}
