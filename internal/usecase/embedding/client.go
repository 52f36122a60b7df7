// Package embedding turns texts into vectors for ingestion and retrieval.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/usage"
	"github.com/kailas-cloud/storyrag/internal/metrics"
	"github.com/kailas-cloud/storyrag/internal/resilience"
)

// DefaultMaxBatchSize is the largest batch sent in one provider call.
const DefaultMaxBatchSize = 256

// BudgetGuard is the local interface for budget enforcement.
type BudgetGuard interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	Daily() usage.Window
	Monthly() usage.Window
}

// Options configures a Client.
type Options struct {
	Provider     string
	Model        string
	Dimensions   int
	MaxBatchSize int // 0 means DefaultMaxBatchSize
	Retry        resilience.Policy
	Throttle     *resilience.Throttle // optional
	Budget       BudgetGuard          // optional
	Logger       *zap.Logger
}

// Client batches, retries and validates embedding calls.
// Every returned vector has exactly Dimensions components.
type Client struct {
	inner     domain.Embedder
	provider  string
	model     string
	dims      int
	batchSize int
	retry     resilience.Policy
	throttle  *resilience.Throttle
	budget    BudgetGuard
	logger    *zap.Logger
}

// NewClient wraps a provider embedder.
func NewClient(inner domain.Embedder, opts Options) (*Client, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: embedder is required", domain.ErrInvalidConfig)
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidConfig, opts.Dimensions)
	}
	batch := opts.MaxBatchSize
	if batch == 0 {
		batch = DefaultMaxBatchSize
	}
	if batch < 0 {
		return nil, fmt.Errorf("%w: max batch size must be positive, got %d", domain.ErrInvalidConfig, batch)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		inner:     inner,
		provider:  opts.Provider,
		model:     opts.Model,
		dims:      opts.Dimensions,
		batchSize: batch,
		retry:     opts.Retry,
		throttle:  opts.Throttle,
		budget:    opts.Budget,
		logger:    logger,
	}, nil
}

// Dimensions returns the vector length every call produces.
func (c *Client) Dimensions() int { return c.dims }

// EmbedQuery embeds a single question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed returns one vector per text in input order.
// Provider failures surface as ErrEmbeddingService once retries are spent;
// wrong counts or lengths surface as ErrDimensionMismatch.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	out := make([][]float32, 0, len(texts))
	tokens := 0

	for offset := 0; offset < len(texts); offset += c.batchSize {
		batch := texts[offset:min(offset+c.batchSize, len(texts))]

		if c.budget != nil {
			if err := c.budget.Check(ctx); err != nil {
				c.logger.Error("Embedding budget exhausted",
					zap.String("provider", c.provider),
					zap.Int("batch_offset", offset),
					zap.Error(err),
				)
				return nil, err
			}
		}

		res, err := c.embedBatch(ctx, batch)
		if err != nil {
			c.logger.Error("Embedding batch failed",
				zap.String("provider", c.provider),
				zap.String("model", c.model),
				zap.Int("batch_offset", offset),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			return nil, err
		}

		out = append(out, res.Embeddings...)
		tokens += res.TotalTokens
		c.recordTokens(ctx, res.TotalTokens)
	}

	c.logger.Debug("Embedding completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Int("texts", len(texts)),
		zap.Int("total_tokens", tokens),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// HealthCheck probes the provider when it supports it.
func (c *Client) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) (domain.BatchEmbeddingResult, error) {
	res, err := resilience.Do(ctx, c.retry,
		func(ctx context.Context, attempt int) (domain.BatchEmbeddingResult, error) {
			release, err := c.throttle.Acquire(ctx)
			if err != nil {
				return domain.BatchEmbeddingResult{}, err
			}
			defer release()

			res, err := domain.BatchEmbed(ctx, c.inner, batch)
			if err != nil && resilience.Retryable(err) {
				c.logger.Warn("Embedding call failed, retrying",
					zap.String("provider", c.provider),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
			return res, err
		})
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return domain.BatchEmbeddingResult{}, err
		}
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}

	if len(res.Embeddings) != len(batch) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: got %d vectors for %d texts",
			domain.ErrDimensionMismatch, len(res.Embeddings), len(batch))
	}
	for i, v := range res.Embeddings {
		if len(v) != c.dims {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: vector %d has %d components, want %d",
				domain.ErrDimensionMismatch, i, len(v), c.dims)
		}
	}
	return res, nil
}

func (c *Client) recordTokens(ctx context.Context, tokens int) {
	domain.UsageFromContext(ctx).AddTokens(tokens)

	if c.budget == nil || tokens <= 0 {
		return
	}
	c.budget.Record(int64(tokens))
	remaining := metrics.EmbeddingBudgetTokensRemaining
	remaining.WithLabelValues(c.provider, "daily").Set(float64(c.budget.Daily().Remaining()))
	remaining.WithLabelValues(c.provider, "monthly").Set(float64(c.budget.Monthly().Remaining()))
}
