package chi

import (
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/storyrag/internal/domain/document"
	domusage "github.com/kailas-cloud/storyrag/internal/domain/usage"
	"github.com/kailas-cloud/storyrag/internal/metrics"
	"github.com/kailas-cloud/storyrag/internal/usecase/answer"
	"github.com/kailas-cloud/storyrag/internal/usecase/session"
)

// ErrorCode is a machine-readable error identifier in API responses.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUnsupportedFormat  ErrorCode = "unsupported_format"
	CodeUnprocessable      ErrorCode = "unprocessable_document"
	CodePayloadTooLarge    ErrorCode = "payload_too_large"
	CodeSessionNotFound    ErrorCode = "session_not_found"
	CodeDocumentNotFound   ErrorCode = "document_not_found"
	CodeEmptyIndex         ErrorCode = "empty_index"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeQuotaExceeded      ErrorCode = "embedding_quota_exceeded"
	CodeServiceUnavailable ErrorCode = "service_unavailable"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// SessionStatsResponse is a session with its index totals.
type SessionStatsResponse struct {
	SessionResponse
	Documents   int            `json:"documents"`
	Chunks      int            `json:"chunks"`
	ChunkCounts map[string]int `json:"chunk_counts"`
}

// DocumentResponse describes an ingested document. The text itself is not echoed.
type DocumentResponse struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Title      string    `json:"title"`
	Format     string    `json:"format"`
	Chars      int       `json:"chars"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentListResponse lists a session's documents, oldest first.
type DocumentListResponse struct {
	Items []DocumentResponse `json:"items"`
	Count int                `json:"count"`
}

// PasteRequest is the body of POST /sessions/{id}/documents/text.
type PasteRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// QuestionRequest is the body of POST /sessions/{id}/questions.
type QuestionRequest struct {
	Question string `json:"question"`
}

// CitationResponse is one chunk an answer was grounded on.
type CitationResponse struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// AnswerResponse is a synthesized answer with its supporting chunks.
type AnswerResponse struct {
	Answer    string             `json:"answer"`
	ChunkIDs  []string           `json:"chunk_ids"`
	Scores    []float64          `json:"scores"`
	Citations []CitationResponse `json:"citations"`
}

// CallStatsResponse summarizes outbound calls of one kind.
type CallStatsResponse struct {
	Calls        int64   `json:"calls"`
	Failures     int64   `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Sessions   int               `json:"sessions"`
	Embedding  CallStatsResponse `json:"embedding"`
	Completion CallStatsResponse `json:"completion"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Period             string       `json:"period"`
	PeriodStartAt      *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt        *time.Time   `json:"period_end_at,omitempty"`
	Tokens             int          `json:"tokens"`
	EmbeddingRequests  int64        `json:"embedding_requests"`
	CompletionRequests int64        `json:"completion_requests"`
	Budget             BudgetStatus `json:"budget"`
}

// BudgetStatus is the embedding token budget for the reported period.
type BudgetStatus struct {
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func sessionToResponse(info session.Info) SessionResponse {
	return SessionResponse{ID: info.ID, CreatedAt: info.CreatedAt, LastActive: info.LastActive}
}

func documentToResponse(d document.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID(),
		SessionID:  d.SessionID(),
		Title:      d.Title(),
		Format:     string(d.Format()),
		Chars:      utf8.RuneCountInString(d.Text()),
		ChunkCount: d.ChunkCount(),
		CreatedAt:  d.CreatedAt(),
	}
}

func answerToResponse(res answer.Result) AnswerResponse {
	resp := AnswerResponse{
		Answer:    res.Answer,
		ChunkIDs:  res.ChunkIDs,
		Scores:    res.Scores,
		Citations: make([]CitationResponse, len(res.Citations)),
	}
	if resp.ChunkIDs == nil {
		resp.ChunkIDs = []string{}
	}
	if resp.Scores == nil {
		resp.Scores = []float64{}
	}
	for i, c := range res.Citations {
		resp.Citations[i] = CitationResponse{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Score:      c.Score,
		}
	}
	return resp
}

func callsToResponse(s metrics.CallSnapshot) CallStatsResponse {
	return CallStatsResponse{
		Calls:        s.Calls,
		Failures:     s.Failures,
		AvgLatencyMs: float64(s.AvgLatency().Microseconds()) / 1000,
	}
}

func usageToResponse(r domusage.Report) UsageResponse {
	resp := UsageResponse{
		Period:             string(r.Period),
		Tokens:             r.TokensUsed,
		EmbeddingRequests:  r.Calls.EmbeddingRequests,
		CompletionRequests: r.Calls.CompletionRequests,
		Budget: BudgetStatus{
			TokensLimit:     r.Budget.TokensLimit,
			TokensRemaining: r.Budget.TokensRemaining,
			IsExhausted:     r.Budget.Exhausted,
		},
	}
	if r.PeriodStart > 0 {
		start := time.UnixMilli(r.PeriodStart).UTC()
		end := time.UnixMilli(r.PeriodEnd).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if r.Budget.ResetsAt > 0 {
		resetsAt := time.UnixMilli(r.Budget.ResetsAt).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}
	return resp
}
