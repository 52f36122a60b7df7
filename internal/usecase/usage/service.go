// Package usage reports model token usage and outbound call counters.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/storyrag/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br    BudgetReader
	calls CallReader
	now   func() time.Time
}

// New creates a Service. Either reader may be nil.
func New(br BudgetReader, calls CallReader) *Service {
	return &Service{br: br, calls: calls, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()
	r := domusage.Report{Period: period}

	var w domusage.Window
	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodStart = dayStart.UnixMilli()
		r.PeriodEnd = dayStart.AddDate(0, 0, 1).UnixMilli()
		if s.br != nil {
			w = s.br.Daily()
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodStart = monthStart.UnixMilli()
		r.PeriodEnd = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			w = s.br.Monthly()
		}
	default:
		// total has no boundaries; the monthly window is the widest one tracked
		if s.br != nil {
			w = s.br.Monthly()
		}
	}

	r.TokensUsed = int(w.Used)
	r.Budget = domusage.Budget{
		TokensLimit:     int(w.Limit),
		TokensRemaining: int(max(w.Remaining(), 0)),
		Exhausted:       w.Exhausted(),
		ResetsAt:        r.PeriodEnd,
	}

	if s.calls != nil {
		emb, cmp := s.calls.EmbeddingSnapshot(), s.calls.CompletionSnapshot()
		r.Calls = domusage.Calls{
			EmbeddingRequests:  emb.Calls,
			EmbeddingFailures:  emb.Failures,
			CompletionRequests: cmp.Calls,
			CompletionFailures: cmp.Failures,
		}
	}
	return r
}
