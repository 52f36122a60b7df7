package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
)

// --- Mock ---

type mockIndex struct {
	mu      sync.Mutex
	created map[string]bool
	dropped []string
	counts  map[string]map[string]int
	deleted []string
}

func newMockIndex() *mockIndex {
	return &mockIndex{created: map[string]bool{}, counts: map[string]map[string]int{}}
}

func (m *mockIndex) CreateSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[id] = true
	m.counts[id] = map[string]int{}
}

func (m *mockIndex) DropSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, id)
	delete(m.counts, id)
}

func (m *mockIndex) DeleteDocument(sessionID, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, documentID)
	n := m.counts[sessionID][documentID]
	delete(m.counts[sessionID], documentID)
	return n, nil
}

func (m *mockIndex) ChunkCounts(sessionID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := make(map[string]int, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out, nil
}

func newDoc(t *testing.T, id, sessionID string, at time.Time) document.Document {
	t.Helper()
	d, err := document.New(id, sessionID, "title "+id, document.FormatTXT, "some story text", at)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return d
}

// --- Tests ---

func TestCreateAndTeardown(t *testing.T) {
	idx := newMockIndex()
	r := NewRegistry(idx, 0, zap.NewNop())

	info := r.Create(context.Background())
	if info.ID == "" {
		t.Fatal("expected session id")
	}
	if !idx.created[info.ID] {
		t.Error("index scope not created")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if err := r.Teardown(context.Background(), info.ID); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if len(idx.dropped) != 1 || idx.dropped[0] != info.ID {
		t.Errorf("index scope not dropped: %v", idx.dropped)
	}
	if err := r.Teardown(context.Background(), info.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second teardown: expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	r := NewRegistry(newMockIndex(), 0, zap.NewNop())
	a := r.Create(context.Background())
	b := r.Create(context.Background())
	if a.ID == b.ID {
		t.Error("session ids must be unique")
	}
}

func TestDocuments(t *testing.T) {
	r := NewRegistry(newMockIndex(), 0, zap.NewNop())
	s := r.Create(context.Background())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := r.AddDocument(newDoc(t, "b", s.ID, base.Add(time.Minute))); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := r.AddDocument(newDoc(t, "a", s.ID, base)); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	docs, err := r.Documents(s.ID)
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "a" || docs[1].ID() != "b" {
		t.Errorf("expected oldest first, got %v", docs)
	}

	got, err := r.Document(s.ID, "a")
	if err != nil || got.Title() != "title a" {
		t.Errorf("Document = %v, %v", got, err)
	}
	if _, err := r.Document(s.ID, "zzz"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestAddDocument_UnknownSession(t *testing.T) {
	r := NewRegistry(newMockIndex(), 0, zap.NewNop())
	err := r.AddDocument(newDoc(t, "a", "missing", time.Now()))
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRemoveDocument(t *testing.T) {
	idx := newMockIndex()
	r := NewRegistry(idx, 0, zap.NewNop())
	s := r.Create(context.Background())
	_ = r.AddDocument(newDoc(t, "a", s.ID, time.Now()))
	idx.counts[s.ID]["a"] = 3

	if err := r.RemoveDocument(s.ID, "a"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	if len(idx.deleted) != 1 || idx.deleted[0] != "a" {
		t.Errorf("vectors not deleted: %v", idx.deleted)
	}
	if err := r.RemoveDocument(s.ID, "a"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	idx := newMockIndex()
	r := NewRegistry(idx, 0, zap.NewNop())
	s := r.Create(context.Background())
	_ = r.AddDocument(newDoc(t, "a", s.ID, time.Now()))
	_ = r.AddDocument(newDoc(t, "b", s.ID, time.Now()))
	idx.counts[s.ID]["a"] = 3
	idx.counts[s.ID]["b"] = 4

	st, err := r.Stats(s.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Documents != 2 || st.Chunks != 7 || st.ChunkCounts["b"] != 4 {
		t.Errorf("unexpected stats %+v", st)
	}
	if _, err := r.Stats("missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestReap(t *testing.T) {
	idx := newMockIndex()
	r := NewRegistry(idx, time.Hour, zap.NewNop())
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := r.Create(context.Background())
	active := r.Create(context.Background())

	now = now.Add(50 * time.Minute)
	if _, err := r.Touch(active.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	now = now.Add(20 * time.Minute)

	if n := r.Reap(context.Background()); n != 1 {
		t.Fatalf("Reap = %d, want 1", n)
	}
	if _, err := r.Touch(idle.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("idle session should be gone, got %v", err)
	}
	if _, err := r.Touch(active.ID); err != nil {
		t.Errorf("active session should survive: %v", err)
	}
	if len(idx.dropped) != 1 || idx.dropped[0] != idle.ID {
		t.Errorf("expected idle scope dropped, got %v", idx.dropped)
	}
}

func TestReap_Disabled(t *testing.T) {
	r := NewRegistry(newMockIndex(), 0, zap.NewNop())
	r.Create(context.Background())
	r.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }

	if n := r.Reap(context.Background()); n != 0 {
		t.Errorf("zero ttl must never reap, got %d", n)
	}
}

func TestRunReaper_StopsOnCancel(t *testing.T) {
	r := NewRegistry(newMockIndex(), time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunReaper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
