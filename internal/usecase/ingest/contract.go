package ingest

import (
	"context"

	"github.com/kailas-cloud/storyrag/internal/domain/chunk"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
)

// Extractor turns uploaded bytes into normalized text.
type Extractor interface {
	Extract(data []byte, format document.Format) (string, error)
}

// Embedder vectorizes chunk texts, one vector per text in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index stores chunk vectors per session.
type Index interface {
	InsertBatch(sessionID string, chunks []chunk.Chunk) error
}

// Sessions validates the target session and records the document.
type Sessions interface {
	Exists(sessionID string) error
	AddDocument(doc document.Document) error
}
