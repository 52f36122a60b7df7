// Package vector is the per-session in-memory vector index.
package vector

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/chunk"
)

// record is immutable once stored; overwrites swap the pointer.
type record struct {
	chunk.Chunk
	seq uint64
}

// scope is the slice of the index owned by one session.
type scope struct {
	mu      sync.RWMutex
	entries map[string]*record
	nextSeq uint64
}

// Index holds vectors of a fixed dimension partitioned by session.
type Index struct {
	dims   int
	metric domain.Metric
	score  func(a, b []float32) float64

	mu       sync.RWMutex
	sessions map[string]*scope
}

// New creates an empty index.
func New(dims int, metric domain.Metric) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive, got %d", domain.ErrInvalidConfig, dims)
	}
	if metric == "" {
		metric = domain.MetricCosine
	}
	score, ok := scorers[metric]
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidConfig, metric)
	}
	return &Index{
		dims:     dims,
		metric:   metric,
		score:    score,
		sessions: make(map[string]*scope),
	}, nil
}

// Dimensions returns the vector length the index accepts.
func (ix *Index) Dimensions() int { return ix.dims }

// CreateSession allocates an empty scope. Creating an existing session is a no-op.
func (ix *Index) CreateSession(sessionID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.sessions[sessionID]; !ok {
		ix.sessions[sessionID] = &scope{entries: make(map[string]*record)}
	}
}

// DropSession releases every entry of the session.
func (ix *Index) DropSession(sessionID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.sessions, sessionID)
}

// Insert adds or overwrites one entry.
func (ix *Index) Insert(sessionID string, c chunk.Chunk) error {
	return ix.InsertBatch(sessionID, []chunk.Chunk{c})
}

// InsertBatch validates every entry, then applies them under one write lock.
// One invalid entry rejects the whole batch. Overwritten entries keep their
// original insertion order.
func (ix *Index) InsertBatch(sessionID string, entries []chunk.Chunk) error {
	s, err := ix.scope(sessionID)
	if err != nil {
		return err
	}
	for i := range entries {
		if err := ix.validate(&entries[i]); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.Vector = slices.Clone(e.Vector)
		if old, ok := s.entries[e.ID]; ok {
			s.entries[e.ID] = &record{Chunk: e, seq: old.seq}
			continue
		}
		s.entries[e.ID] = &record{Chunk: e, seq: s.nextSeq}
		s.nextSeq++
	}
	return nil
}

// Search returns up to k entries of the session by descending similarity.
// Equal scores keep insertion order.
func (ix *Index) Search(sessionID string, query []float32, k int) ([]chunk.Scored, error) {
	s, err := ix.scope(sessionID)
	if err != nil {
		return nil, err
	}
	if len(query) != ix.dims {
		return nil, fmt.Errorf("%w: query has %d components, index has %d",
			domain.ErrDimensionMismatch, len(query), ix.dims)
	}

	s.mu.RLock()
	if len(s.entries) == 0 {
		s.mu.RUnlock()
		return nil, domain.ErrEmptyIndex
	}
	if k <= 0 {
		s.mu.RUnlock()
		return nil, nil
	}

	type candidate struct {
		rec   *record
		score float64
	}
	cands := make([]candidate, 0, len(s.entries))
	for _, r := range s.entries {
		cands = append(cands, candidate{rec: r, score: ix.score(query, r.Vector)})
	}
	s.mu.RUnlock()

	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.seq, b.rec.seq)
	})

	cands = cands[:min(k, len(cands))]
	hits := make([]chunk.Scored, len(cands))
	for i, c := range cands {
		hits[i] = chunk.Scored{Chunk: c.rec.Chunk, Score: c.score}
	}
	return hits, nil
}

// DeleteDocument removes every entry of the document. Unknown documents are ignored.
func (ix *Index) DeleteDocument(sessionID, documentID string) (int, error) {
	s, err := ix.scope(sessionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, r := range s.entries {
		if r.DocumentID == documentID {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// ChunkCounts maps each document of the session to its number of entries.
func (ix *Index) ChunkCounts(sessionID string) (map[string]int, error) {
	s, err := ix.scope(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, r := range s.entries {
		counts[r.DocumentID]++
	}
	return counts, nil
}

// Len returns the number of entries in the session.
func (ix *Index) Len(sessionID string) (int, error) {
	s, err := ix.scope(sessionID)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (ix *Index) scope(sessionID string) (*scope, error) {
	ix.mu.RLock()
	s, ok := ix.sessions[sessionID]
	ix.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return s, nil
}

func (ix *Index) validate(e *chunk.Chunk) error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty chunk id", domain.ErrInvalidInput)
	}
	if len(e.Vector) != ix.dims {
		return fmt.Errorf("%w: chunk %s has %d components, index has %d",
			domain.ErrDimensionMismatch, e.ID, len(e.Vector), ix.dims)
	}
	return nil
}

var scorers = map[domain.Metric]func(a, b []float32) float64{
	domain.MetricCosine:    cosine,
	domain.MetricDot:       dot,
	domain.MetricEuclidean: negEuclidean,
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// cosine is 0 when either vector has zero norm.
func cosine(a, b []float32) float64 {
	var ab, aa, bb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		ab += x * y
		aa += x * x
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / (math.Sqrt(aa) * math.Sqrt(bb))
}

// negEuclidean ranks nearer vectors higher.
func negEuclidean(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return -math.Sqrt(s)
}
