package domain

import "fmt"

// KeyPrefix namespaces every key this service writes to the shared store.
// Set once at startup from storage.key_prefix.
var KeyPrefix = "storyrag:"

// Metric is the similarity function used by the vector index.
type Metric string

// Supported similarity metrics.
const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclidean Metric = "euclidean"
)

// RAGConfig holds pipeline settings shared by ingestion and querying.
type RAGConfig struct {
	ChunkSize     int
	ChunkOverlap  int
	TopK          int
	ContextBudget int // max runes of chunk text handed to synthesis
	MaxBatchSize  int // max texts per embedding API call
	Dimensions    int
	Metric        Metric
}

// DefaultRAGConfig returns settings tuned for text-embedding-3-small.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		ChunkSize:     500,
		ChunkOverlap:  50,
		TopK:          5,
		ContextBudget: 4000,
		MaxBatchSize:  256,
		Dimensions:    1536,
		Metric:        MetricCosine,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c RAGConfig) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d",
			ErrInvalidConfig, c.ChunkSize, c.ChunkOverlap)
	case c.TopK <= 0:
		return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidConfig, c.TopK)
	case c.ContextBudget <= 0:
		return fmt.Errorf("%w: context budget must be positive, got %d", ErrInvalidConfig, c.ContextBudget)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max batch size must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	case c.Dimensions <= 0:
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidConfig, c.Dimensions)
	}
	switch c.Metric {
	case MetricCosine, MetricDot, MetricEuclidean:
	default:
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, c.Metric)
	}
	return nil
}
