package storyrag

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Metric is the vector similarity function.
type Metric string

// Supported similarity metrics.
const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclidean Metric = "euclidean"
)

type openAIConfig struct {
	apiKey          string
	baseURL         string
	embeddingModel  string
	completionModel string
}

type clientConfig struct {
	embedder  Embedder
	completer Completer
	openai    *openAIConfig

	chunkSize     int
	chunkOverlap  int
	topK          int
	contextBudget int
	dimensions    int
	metric        Metric
	maxBatchSize  int

	retryAttempts  int
	retryBaseDelay time.Duration

	requestsPerSecond float64
	burst             int
	maxConcurrent     int64

	dailyTokenLimit   int64
	monthlyTokenLimit int64
	rejectOverBudget  bool

	sessionTTL time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithOpenAI uses the OpenAI API for embeddings (text-embedding-3-small)
// and answers (gpt-4o-mini). WithEmbedder and WithCompleter take precedence.
func WithOpenAI(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openai = &openAIConfig{
			apiKey:          apiKey,
			embeddingModel:  "text-embedding-3-small",
			completionModel: "gpt-4o-mini",
		}
	})
}

// WithOpenAICompatible points WithOpenAI at another base URL and models.
func WithOpenAICompatible(apiKey, baseURL, embeddingModel, completionModel string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openai = &openAIConfig{
			apiKey:          apiKey,
			baseURL:         baseURL,
			embeddingModel:  embeddingModel,
			completionModel: completionModel,
		}
	})
}

// WithEmbedder sets the text embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the answer model.
func WithCompleter(cmp Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cmp
	})
}

// WithChunking sets chunk size and overlap, in characters. Defaults: 500 and 50.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many chunks are retrieved per question. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithContextBudget caps the characters of chunk text sent to the answer model.
// Default: 4000.
func WithContextBudget(chars int) Option {
	return optionFunc(func(c *clientConfig) {
		c.contextBudget = chars
	})
}

// WithDimensions sets the embedding dimension. Default: 1536.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithMetric sets the similarity metric. Default: cosine.
func WithMetric(m Metric) Option {
	return optionFunc(func(c *clientConfig) {
		c.metric = m
	})
}

// WithMaxBatchSize sets the maximum number of texts per embedding call.
// Default: 256.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithRetry sets the attempts per provider call and the first backoff delay.
// Default: 3 attempts starting at 500ms.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.retryAttempts = attempts
		c.retryBaseDelay = baseDelay
	})
}

// WithRateLimit bounds provider calls shared by embeddings and answers.
// Zero values disable the matching limit.
func WithRateLimit(requestsPerSecond float64, burst int, maxConcurrent int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.requestsPerSecond = requestsPerSecond
		c.burst = burst
		c.maxConcurrent = maxConcurrent
	})
}

// WithBudget sets daily and monthly embedding token limits. With reject,
// calls over budget fail with ErrEmbeddingQuotaExceeded; otherwise they are logged.
func WithBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokenLimit = daily
		c.monthlyTokenLimit = monthly
		c.rejectOverBudget = reject
	})
}

// WithSessionTTL tears down sessions idle for longer than ttl.
// Default: sessions live until DeleteSession or Close.
func WithSessionTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
