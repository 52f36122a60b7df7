package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/usage"
)

// BudgetAction defines behavior when the token budget is exhausted.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request with ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// CounterStore persists budget counters. IncrBy may be called repeatedly.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetConfig sets the token limits for one provider. Zero limits are unlimited.
type BudgetConfig struct {
	Provider     string
	DailyLimit   int64
	MonthlyLimit int64
	Action       BudgetAction
}

// Budget tracks embedding token spend in memory and mirrors it to a store.
// Check never leaves the process; Record writes behind to the store.
type Budget struct {
	cfg    BudgetConfig
	store  CounterStore
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	day     time.Time
	month   time.Time
	daily   int64
	monthly int64
}

// NewBudget creates an in-memory budget.
func NewBudget(cfg BudgetConfig, logger *zap.Logger) *Budget {
	if cfg.Action == "" {
		cfg.Action = BudgetActionWarn
	}
	b := &Budget{cfg: cfg, logger: logger, now: time.Now}
	b.day, b.month = windowStarts(b.now())
	return b
}

// WithStore attaches persistence and loads the counters of the current windows.
// Load failures leave the counters at zero.
func (b *Budget) WithStore(ctx context.Context, store CounterStore) *Budget {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	b.rollover()

	if v, err := store.Get(ctx, b.dailyKey()); err != nil {
		b.logger.Warn("Failed to load daily budget", zap.String("provider", b.cfg.Provider), zap.Error(err))
	} else {
		b.daily = v
	}
	if v, err := store.Get(ctx, b.monthlyKey()); err != nil {
		b.logger.Warn("Failed to load monthly budget", zap.String("provider", b.cfg.Provider), zap.Error(err))
	} else {
		b.monthly = v
	}

	b.logger.Info("Embedding budget loaded",
		zap.String("provider", b.cfg.Provider),
		zap.Int64("daily_used", b.daily),
		zap.Int64("monthly_used", b.monthly),
	)
	return b
}

// Check returns ErrEmbeddingQuotaExceeded when a window is exhausted and the
// action is reject. With action warn it only logs.
func (b *Budget) Check(_ context.Context) error {
	b.mu.Lock()
	b.rollover()
	daily := usage.Window{Limit: b.cfg.DailyLimit, Used: b.daily}
	monthly := usage.Window{Limit: b.cfg.MonthlyLimit, Used: b.monthly}
	b.mu.Unlock()

	if !daily.Exhausted() && !monthly.Exhausted() {
		return nil
	}
	if b.cfg.Action == BudgetActionReject {
		return fmt.Errorf("%w: %s daily %d/%d monthly %d/%d", domain.ErrEmbeddingQuotaExceeded,
			b.cfg.Provider, daily.Used, daily.Limit, monthly.Used, monthly.Limit)
	}

	b.logger.Warn("Embedding budget exceeded",
		zap.String("provider", b.cfg.Provider),
		zap.Int64("daily_used", daily.Used),
		zap.Int64("daily_limit", daily.Limit),
		zap.Int64("monthly_used", monthly.Used),
		zap.Int64("monthly_limit", monthly.Limit),
	)
	return nil
}

// Record adds consumed tokens. Store errors are logged, never returned.
func (b *Budget) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	b.rollover()
	b.daily += tokens
	b.monthly += tokens
	store := b.store
	dailyKey, monthlyKey := b.dailyKey(), b.monthlyKey()
	b.mu.Unlock()

	if store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, tokens); err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, tokens); err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// Daily returns the current day window.
func (b *Budget) Daily() usage.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return usage.Window{Limit: b.cfg.DailyLimit, Used: b.daily}
}

// Monthly returns the current month window.
func (b *Budget) Monthly() usage.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return usage.Window{Limit: b.cfg.MonthlyLimit, Used: b.monthly}
}

// rollover zeroes the counters of windows that have ended. Callers hold mu.
func (b *Budget) rollover() {
	day, month := windowStarts(b.now())
	if day.After(b.day) {
		b.daily = 0
		b.day = day
	}
	if month.After(b.month) {
		b.monthly = 0
		b.month = month
	}
}

func (b *Budget) dailyKey() string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", domain.KeyPrefix, b.cfg.Provider, b.day.Format(time.DateOnly))
}

func (b *Budget) monthlyKey() string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", domain.KeyPrefix, b.cfg.Provider, b.month.Format("2006-01"))
}

func windowStarts(t time.Time) (day, month time.Time) {
	t = t.UTC()
	day = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	month = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return day, month
}
