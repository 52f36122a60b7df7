package storyrag

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
)

const testDims = 16

// wordEmbedder hashes words into buckets so texts sharing words score higher.
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *wordEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return EmbeddingResult{Embedding: wordVector(text), TotalTokens: len(strings.Fields(text))}, nil
}

func wordVector(text string) []float32 {
	v := make([]float32, testDims)
	v[0] = 0.1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[1+int(h.Sum32()%(testDims-1))]++
	}
	return v
}

// batchWordEmbedder also implements BatchEmbedder.
type batchWordEmbedder struct {
	wordEmbedder
	batches int
}

func (e *batchWordEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.mu.Lock()
	e.batches++
	e.mu.Unlock()
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = wordVector(t)
		out.TotalTokens += len(strings.Fields(t))
	}
	return out, nil
}

// echoCompleter records the prompt and answers with a fixed reply.
type echoCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt string
	calls  int
}

func (c *echoCompleter) Complete(_ context.Context, _, prompt string) (CompletionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.prompt = prompt
	if c.err != nil {
		return CompletionResult{}, c.err
	}
	return CompletionResult{Text: c.reply, PromptTokens: 10, CompletionTokens: 3}, nil
}
