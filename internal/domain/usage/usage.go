package usage

import "fmt"

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name; empty means day.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Budget is a token budget snapshot.
type Budget struct {
	TokensLimit     int
	TokensRemaining int
	Exhausted       bool
	ResetsAt        int64 // unix millis
}

// Calls summarizes outbound model calls since process start.
type Calls struct {
	EmbeddingRequests  int64
	EmbeddingFailures  int64
	CompletionRequests int64
	CompletionFailures int64
}

// Report is a model usage report for a time period.
type Report struct {
	Period      Period
	PeriodStart int64 // unix millis, zero for total
	PeriodEnd   int64
	TokensUsed  int
	Calls       Calls
	Budget      Budget
}

// Window is token consumption within one budget period.
type Window struct {
	Limit int64 // 0 means unlimited
	Used  int64
}

// Remaining returns the tokens left, -1 when unlimited, never below 0.
func (w Window) Remaining() int64 {
	if w.Limit <= 0 {
		return -1
	}
	return max(w.Limit-w.Used, 0)
}

// Exhausted reports whether a limited window has no tokens left.
func (w Window) Exhausted() bool {
	return w.Limit > 0 && w.Used >= w.Limit
}
