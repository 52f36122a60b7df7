package chi

import (
	"context"

	"github.com/kailas-cloud/storyrag/internal/domain/document"
	domusage "github.com/kailas-cloud/storyrag/internal/domain/usage"
	"github.com/kailas-cloud/storyrag/internal/metrics"
	"github.com/kailas-cloud/storyrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/storyrag/internal/usecase/health"
	"github.com/kailas-cloud/storyrag/internal/usecase/ingest"
	"github.com/kailas-cloud/storyrag/internal/usecase/session"
)

// Sessions manages session lifecycle and per-session document metadata.
type Sessions interface {
	Create(ctx context.Context) session.Info
	Touch(sessionID string) (session.Info, error)
	Teardown(ctx context.Context, sessionID string) error
	Stats(sessionID string) (session.Stats, error)
	Documents(sessionID string) ([]document.Document, error)
	RemoveDocument(sessionID, documentID string) error
	Len() int
}

// Ingester runs the upload pipeline.
type Ingester interface {
	Ingest(ctx context.Context, sessionID string, req ingest.Request) (document.Document, error)
}

// Answerer answers a question from a session's documents.
type Answerer interface {
	AnswerQuestion(ctx context.Context, sessionID, question string) (answer.Result, error)
}

// UsageReporter builds token usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// CallReader exposes outbound call counters.
type CallReader interface {
	EmbeddingSnapshot() metrics.CallSnapshot
	CompletionSnapshot() metrics.CallSnapshot
}
