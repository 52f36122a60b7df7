// Package session owns session lifecycle: creation, document bookkeeping,
// teardown and idle expiry.
package session

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
	"github.com/kailas-cloud/storyrag/internal/metrics"
)

// Info describes a live session.
type Info struct {
	ID         string
	CreatedAt  time.Time
	LastActive time.Time
}

// Stats is the pull-style view of one session.
type Stats struct {
	Info
	Documents   int
	Chunks      int
	ChunkCounts map[string]int // document id -> indexed chunks
}

type state struct {
	info Info
	docs map[string]document.Document
}

// Registry is the process-wide set of sessions.
type Registry struct {
	index  Index
	ttl    time.Duration // 0 disables expiry
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*state
}

// NewRegistry creates an empty registry backed by index.
func NewRegistry(index Index, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		index:    index,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*state),
	}
}

// Create opens a new session with an empty index scope.
func (r *Registry) Create(_ context.Context) Info {
	now := r.now()
	info := Info{ID: uuid.NewString(), CreatedAt: now, LastActive: now}

	r.mu.Lock()
	r.sessions[info.ID] = &state{info: info, docs: make(map[string]document.Document)}
	n := len(r.sessions)
	r.mu.Unlock()

	r.index.CreateSession(info.ID)
	metrics.ActiveSessions.Set(float64(n))
	r.logger.Info("Session created", zap.String("session_id", info.ID))
	return info
}

// Touch marks the session as active and returns it.
func (r *Registry) Touch(sessionID string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	st.info.LastActive = r.now()
	return st.info, nil
}

// Exists returns ErrSessionNotFound for unknown sessions and touches known ones.
func (r *Registry) Exists(sessionID string) error {
	_, err := r.Touch(sessionID)
	return err
}

// Teardown releases the session and all of its documents and vectors.
func (r *Registry) Teardown(_ context.Context, sessionID string) error {
	r.mu.Lock()
	_, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	r.index.DropSession(sessionID)
	metrics.ActiveSessions.Set(float64(n))
	r.logger.Info("Session torn down", zap.String("session_id", sessionID))
	return nil
}

// AddDocument records an ingested document.
func (r *Registry) AddDocument(doc document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[doc.SessionID()]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, doc.SessionID())
	}
	st.docs[doc.ID()] = doc
	st.info.LastActive = r.now()
	return nil
}

// Document returns one document of the session.
func (r *Registry) Document(sessionID, documentID string) (document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[sessionID]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	doc, ok := st.docs[documentID]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, documentID)
	}
	return doc, nil
}

// Documents lists the session's documents, oldest first.
func (r *Registry) Documents(sessionID string) ([]document.Document, error) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	docs := make([]document.Document, 0, len(st.docs))
	for _, d := range st.docs {
		docs = append(docs, d)
	}
	r.mu.Unlock()

	slices.SortFunc(docs, func(a, b document.Document) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return docs, nil
}

// RemoveDocument deletes a document and its vectors.
func (r *Registry) RemoveDocument(sessionID, documentID string) error {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if _, ok := st.docs[documentID]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, documentID)
	}
	delete(st.docs, documentID)
	st.info.LastActive = r.now()
	r.mu.Unlock()

	removed, err := r.index.DeleteDocument(sessionID, documentID)
	if err != nil {
		return fmt.Errorf("delete document vectors: %w", err)
	}
	r.logger.Info("Document removed",
		zap.String("session_id", sessionID),
		zap.String("document_id", documentID),
		zap.Int("chunks", removed),
	)
	return nil
}

// Stats reports document and chunk counts for the session.
func (r *Registry) Stats(sessionID string) (Stats, error) {
	r.mu.Lock()
	st, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return Stats{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	info, docs := st.info, len(st.docs)
	r.mu.Unlock()

	counts, err := r.index.ChunkCounts(sessionID)
	if err != nil {
		return Stats{}, fmt.Errorf("chunk counts: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return Stats{Info: info, Documents: docs, Chunks: total, ChunkCounts: counts}, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap tears down sessions idle for longer than the TTL and returns how many.
func (r *Registry) Reap(_ context.Context) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []string
	for id, st := range r.sessions {
		if st.info.LastActive.Before(cutoff) {
			expired = append(expired, id)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, id := range expired {
		r.index.DropSession(id)
	}
	reaped := len(expired)
	metrics.ActiveSessions.Set(float64(n))
	if reaped > 0 {
		r.logger.Info("Idle sessions reaped",
			zap.Int("count", reaped),
			zap.Strings("session_ids", expired),
			zap.Duration("ttl", r.ttl),
		)
	}
	return reaped
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap(ctx)
		}
	}
}
