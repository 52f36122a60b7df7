// Package chunk splits normalized document text into overlapping windows.
package chunk

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

// Chunk is a contiguous slice of a document's text.
// Start and End are rune offsets into the normalized text, End exclusive.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Start      int
	End        int
	Vector     []float32 // nil until embedded
}

// ID derives the chunk identifier from its document and sequence index.
func ID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

// Split cuts text into windows of size runes, each starting size-overlap runes
// after the previous one. Text no longer than size yields a single chunk.
// The final window is clamped to the text length.
func Split(documentID, text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidConfig, overlap, size)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}
	if n <= size {
		return []Chunk{newChunk(documentID, 0, runes, 0, n)}, nil
	}

	step := size - overlap
	chunks := make([]Chunk, 0, (n+step-1)/step)
	for i, start := 0, 0; start < n; i, start = i+1, start+step {
		end := min(start+size, n)
		chunks = append(chunks, newChunk(documentID, i, runes, start, end))
	}
	return chunks, nil
}

func newChunk(documentID string, index int, runes []rune, start, end int) Chunk {
	return Chunk{
		ID:         ID(documentID, index),
		DocumentID: documentID,
		Index:      index,
		Text:       string(runes[start:end]),
		Start:      start,
		End:        end,
	}
}

// Scored is a chunk ranked against a query.
type Scored struct {
	Chunk
	Score float64
}
