package chi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
	domusage "github.com/kailas-cloud/storyrag/internal/domain/usage"
	"github.com/kailas-cloud/storyrag/internal/metrics"
	"github.com/kailas-cloud/storyrag/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/storyrag/internal/usecase/health"
	"github.com/kailas-cloud/storyrag/internal/usecase/ingest"
	"github.com/kailas-cloud/storyrag/internal/usecase/session"
)

const testSession = "sess-1"

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// --- sessions ---

type fakeSessions struct {
	mu        sync.Mutex
	known     map[string]bool
	docs      map[string][]document.Document
	torn      []string
	touched   int
	removeErr error
}

func newFakeSessions(ids ...string) *fakeSessions {
	f := &fakeSessions{known: map[string]bool{}, docs: map[string][]document.Document{}}
	for _, id := range ids {
		f.known[id] = true
	}
	return f
}

func (f *fakeSessions) lookup(id string) error {
	if !f.known[id] {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return nil
}

func (f *fakeSessions) Create(_ context.Context) session.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known["new-session"] = true
	return session.Info{ID: "new-session", CreatedAt: testTime, LastActive: testTime}
}

func (f *fakeSessions) Touch(id string) (session.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return session.Info{}, err
	}
	f.touched++
	return session.Info{ID: id, CreatedAt: testTime, LastActive: testTime}, nil
}

func (f *fakeSessions) Teardown(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return err
	}
	delete(f.known, id)
	f.torn = append(f.torn, id)
	return nil
}

func (f *fakeSessions) Stats(id string) (session.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return session.Stats{}, err
	}
	st := session.Stats{
		Info:        session.Info{ID: id, CreatedAt: testTime, LastActive: testTime},
		ChunkCounts: map[string]int{},
	}
	for _, d := range f.docs[id] {
		st.Documents++
		st.Chunks += d.ChunkCount()
		st.ChunkCounts[d.ID()] = d.ChunkCount()
	}
	return st, nil
}

func (f *fakeSessions) Documents(id string) ([]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	return f.docs[id], nil
}

func (f *fakeSessions) RemoveDocument(id, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return err
	}
	if f.removeErr != nil {
		return f.removeErr
	}
	docs := f.docs[id]
	for i := range docs {
		if docs[i].ID() == docID {
			f.docs[id] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
}

func (f *fakeSessions) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.known)
}

// --- ingest ---

type fakeIngester struct {
	calls  int
	last   ingest.Request
	tokens int
	err    error
}

func (f *fakeIngester) Ingest(ctx context.Context, sessionID string, req ingest.Request) (document.Document, error) {
	f.calls++
	f.last = req
	if f.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(f.tokens)
	}
	if f.err != nil {
		return document.Document{}, f.err
	}
	doc, err := document.New("doc-1", sessionID, req.Title, req.Format, string(req.Data), testTime)
	if err != nil {
		return document.Document{}, err
	}
	return doc.WithChunkCount(3), nil
}

// --- answers ---

type fakeAnswerer struct {
	calls    int
	question string
	tokens   int
	res      answer.Result
	err      error
}

func (f *fakeAnswerer) AnswerQuestion(ctx context.Context, _, question string) (answer.Result, error) {
	f.calls++
	f.question = question
	if f.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(f.tokens)
	}
	return f.res, f.err
}

// --- usage, health, calls ---

type fakeUsage struct {
	period domusage.Period
}

func (f *fakeUsage) GetReport(_ context.Context, p domusage.Period) domusage.Report {
	f.period = p
	return domusage.Report{
		Period:      p,
		PeriodStart: testTime.UnixMilli(),
		PeriodEnd:   testTime.Add(24 * time.Hour).UnixMilli(),
		TokensUsed:  1200,
		Budget: domusage.Budget{
			TokensLimit:     5000,
			TokensRemaining: 3800,
			ResetsAt:        testTime.Add(24 * time.Hour).UnixMilli(),
		},
	}
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// --- harness ---

type testServer struct {
	handler  http.Handler
	sessions *fakeSessions
	ingest   *fakeIngester
	answers  *fakeAnswerer
	usage    *fakeUsage
	calls    *metrics.Calls
}

type serverOption func(*serverConfig)

type serverConfig struct {
	apiKeys   []string
	maxUpload int64
	health    *healthuc.Service
}

func withAPIKeys(keys ...string) serverOption {
	return func(c *serverConfig) { c.apiKeys = keys }
}

func withMaxUpload(n int64) serverOption {
	return func(c *serverConfig) { c.maxUpload = n }
}

func withHealth(h *healthuc.Service) serverOption {
	return func(c *serverConfig) { c.health = h }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	cfg := serverConfig{health: healthuc.New(nil)}
	for _, o := range opts {
		o(&cfg)
	}
	ts := &testServer{
		sessions: newFakeSessions(testSession),
		ingest:   &fakeIngester{},
		answers:  &fakeAnswerer{},
		usage:    &fakeUsage{},
		calls:    &metrics.Calls{},
	}
	srv := NewServer(ts.sessions, ts.ingest, ts.answers, ts.usage, cfg.health, ts.calls, cfg.maxUpload, nil)
	ts.handler = srv.Routes(cfg.apiKeys)
	return ts
}
