package storyrag

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/storyrag/internal/domain/usage"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
	PeriodTotal UsagePeriod = "total"
)

// UsageReport contains model usage for a time period.
type UsageReport struct {
	Period      UsagePeriod
	PeriodStart time.Time // zero for PeriodTotal
	PeriodEnd   time.Time
	Tokens      int
	Calls       UsageCalls
	Budget      BudgetStatus
}

// UsageCalls counts provider calls since the Client was created.
// Only the built-in OpenAI providers are counted.
type UsageCalls struct {
	EmbeddingRequests  int64
	EmbeddingFailures  int64
	CompletionRequests int64
	CompletionFailures int64
}

// BudgetStatus tracks embedding token quota state. A zero limit is unlimited.
type BudgetStatus struct {
	TokensLimit     int
	TokensRemaining int
	IsExhausted     bool
	ResetsAt        time.Time
}

// Usage returns a usage report for the given period.
// Observer always records success: the report is built in memory and cannot fail.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) UsageReport {
	start := time.Now()
	defer func() { c.obs.observe("usage", "", start, nil) }()

	r := c.usageSvc.GetReport(ctx, domusage.Period(period))
	out := UsageReport{
		Period: UsagePeriod(r.Period),
		Tokens: r.TokensUsed,
		Calls: UsageCalls{
			EmbeddingRequests:  r.Calls.EmbeddingRequests,
			EmbeddingFailures:  r.Calls.EmbeddingFailures,
			CompletionRequests: r.Calls.CompletionRequests,
			CompletionFailures: r.Calls.CompletionFailures,
		},
		Budget: BudgetStatus{
			TokensLimit:     r.Budget.TokensLimit,
			TokensRemaining: r.Budget.TokensRemaining,
			IsExhausted:     r.Budget.Exhausted,
		},
	}
	if r.PeriodStart > 0 {
		out.PeriodStart = time.UnixMilli(r.PeriodStart).UTC()
		out.PeriodEnd = time.UnixMilli(r.PeriodEnd).UTC()
	}
	if r.Budget.ResetsAt > 0 {
		out.Budget.ResetsAt = time.UnixMilli(r.Budget.ResetsAt).UTC()
	}
	return out
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
