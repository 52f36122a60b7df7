package resilience

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds outbound calls for one API key.
type ThrottleConfig struct {
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	MaxConcurrent     int64 // <= 0 disables the concurrency cap
}

// Throttle combines a token bucket with a cap on in-flight calls.
type Throttle struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// NewThrottle creates a Throttle. A zero config lets every call through.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	t := &Throttle{}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.MaxConcurrent > 0 {
		t.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return t
}

// Acquire blocks until a call may start. The returned func must be called
// once the call completes.
func (t *Throttle) Acquire(ctx context.Context) (func(), error) {
	if t == nil {
		return func() {}, nil
	}
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquire call slot: %w", err)
		}
	}
	release := func() {
		if t.sem != nil {
			t.sem.Release(1)
		}
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			release()
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return release, nil
}
