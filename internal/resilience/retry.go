// Package resilience holds the retry policy and outbound call throttle shared
// by every external model call.
package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

// Policy retries transient failures with exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is three attempts starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Retryable reports whether err may succeed on another attempt.
func Retryable(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt ceiling is reached. attempt starts at 1. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	delay := p.BaseDelay

	var (
		res T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err = fn(ctx, attempt)
		if err == nil || !Retryable(err) || attempt == attempts {
			return res, err
		}

		if serr := p.wait(ctx, p.backoff(delay)); serr != nil {
			return res, errors.Join(err, serr)
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return res, err
}

func (p Policy) backoff(d time.Duration) time.Duration {
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
