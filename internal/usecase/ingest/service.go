// Package ingest runs the upload pipeline: extract, chunk, embed, index.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/chunk"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
	"github.com/kailas-cloud/storyrag/internal/metrics"
)

// Request is one document upload.
type Request struct {
	Data   []byte
	Format document.Format
	Title  string
}

// Service ingests documents into a session.
type Service struct {
	extractor Extractor
	embedder  Embedder
	index     Index
	sessions  Sessions
	size      int
	overlap   int
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// New creates an ingest service. size and overlap are validated up front.
func New(
	extractor Extractor, embedder Embedder, index Index, sessions Sessions,
	cfg domain.RAGConfig, logger *zap.Logger,
) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		sessions:  sessions,
		size:      cfg.ChunkSize,
		overlap:   cfg.ChunkOverlap,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}, nil
}

// Ingest stores one document. Nothing of the document is indexed unless
// every chunk was embedded and inserted.
func (s *Service) Ingest(ctx context.Context, sessionID string, req Request) (document.Document, error) {
	start := time.Now()
	doc, err := s.ingest(ctx, sessionID, req)

	status := "ok"
	if err != nil {
		status = errorStatus(err)
	}
	metrics.IngestTotal.WithLabelValues(string(req.Format), status).Inc()

	if err != nil {
		s.logger.Warn("Document ingestion failed",
			zap.String("session_id", sessionID),
			zap.String("format", string(req.Format)),
			zap.Int("bytes", len(req.Data)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return document.Document{}, err
	}

	metrics.IngestChunks.Observe(float64(doc.ChunkCount()))
	s.logger.Info("Document ingested",
		zap.String("session_id", sessionID),
		zap.String("document_id", doc.ID()),
		zap.String("format", string(doc.Format())),
		zap.Int("chunks", doc.ChunkCount()),
		zap.Duration("duration", time.Since(start)),
	)
	return doc, nil
}

func (s *Service) ingest(ctx context.Context, sessionID string, req Request) (document.Document, error) {
	if err := s.sessions.Exists(sessionID); err != nil {
		return document.Document{}, domain.NewScopeError("ingest", sessionID, "", err)
	}
	if !req.Format.Valid() {
		return document.Document{}, domain.NewScopeError("ingest", sessionID, "",
			fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, req.Format))
	}

	docID := s.newID()
	wrap := func(op string, err error) error {
		return domain.NewScopeError(op, sessionID, docID, err)
	}

	text, err := s.extractor.Extract(req.Data, req.Format)
	if err != nil {
		return document.Document{}, wrap("extract", err)
	}

	doc, err := document.New(docID, sessionID, titleOrDefault(req.Title, req.Format, s.now()), req.Format, text, s.now())
	if err != nil {
		return document.Document{}, wrap("ingest", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
	}

	chunks, err := chunk.Split(docID, text, s.size, s.overlap)
	if err != nil {
		return document.Document{}, wrap("chunk", err)
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return document.Document{}, wrap("embed", err)
	}
	if len(vectors) != len(chunks) {
		return document.Document{}, wrap("embed", fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrDimensionMismatch, len(vectors), len(chunks)))
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	if err := s.index.InsertBatch(sessionID, chunks); err != nil {
		return document.Document{}, wrap("index", err)
	}

	doc = doc.WithChunkCount(len(chunks))
	if err := s.sessions.AddDocument(doc); err != nil {
		return document.Document{}, wrap("ingest", err)
	}
	return doc, nil
}

func titleOrDefault(title string, f document.Format, now time.Time) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Sprintf("%s document %s", f, now.Format(time.DateTime))
	}
	if r := []rune(title); len(r) > document.MaxTitleLength {
		return string(r[:document.MaxTitleLength])
	}
	return title
}

func errorStatus(err error) string {
	switch {
	case domain.IsInputError(err):
		return "rejected"
	default:
		return "error"
	}
}
