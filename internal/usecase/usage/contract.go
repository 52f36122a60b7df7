package usage

import (
	domusage "github.com/kailas-cloud/storyrag/internal/domain/usage"
	"github.com/kailas-cloud/storyrag/internal/metrics"
)

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Daily() domusage.Window
	Monthly() domusage.Window
}

// CallReader exposes cumulative outbound call counters.
type CallReader interface {
	EmbeddingSnapshot() metrics.CallSnapshot
	CompletionSnapshot() metrics.CallSnapshot
}
