package metrics

import (
	"sync/atomic"
	"time"
)

// CallStats counts outbound calls of one kind. Safe for concurrent use.
type CallStats struct {
	calls    atomic.Int64
	failures atomic.Int64
	latency  atomic.Int64 // nanoseconds
}

// CallSnapshot is a point-in-time copy of CallStats.
type CallSnapshot struct {
	Calls        int64
	Failures     int64
	TotalLatency time.Duration
}

// AvgLatency returns the mean call latency, zero before the first call.
func (s CallSnapshot) AvgLatency() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Calls)
}

// Observe records one finished call.
func (c *CallStats) Observe(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.calls.Add(1)
	c.latency.Add(int64(d))
	if err != nil {
		c.failures.Add(1)
	}
}

// Snapshot returns the current counters.
func (c *CallStats) Snapshot() CallSnapshot {
	if c == nil {
		return CallSnapshot{}
	}
	return CallSnapshot{
		Calls:        c.calls.Load(),
		Failures:     c.failures.Load(),
		TotalLatency: time.Duration(c.latency.Load()),
	}
}

// Calls groups the counters for every external service the pipeline uses.
type Calls struct {
	Embedding  CallStats
	Completion CallStats
}

// EmbeddingSnapshot returns the embedding counters.
func (c *Calls) EmbeddingSnapshot() CallSnapshot { return c.Embedding.Snapshot() }

// CompletionSnapshot returns the completion counters.
func (c *Calls) CompletionSnapshot() CallSnapshot { return c.Completion.Snapshot() }
