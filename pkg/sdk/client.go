package storyrag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/domain/document"
	"github.com/kailas-cloud/storyrag/internal/extract"
	"github.com/kailas-cloud/storyrag/internal/metrics"
	"github.com/kailas-cloud/storyrag/internal/repository/vector"
	"github.com/kailas-cloud/storyrag/internal/resilience"
	openaiTransport "github.com/kailas-cloud/storyrag/internal/transport/openai"
	"github.com/kailas-cloud/storyrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/storyrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/storyrag/internal/usecase/health"
	"github.com/kailas-cloud/storyrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/storyrag/internal/usecase/query"
	"github.com/kailas-cloud/storyrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/storyrag/internal/usecase/session"
	usageuc "github.com/kailas-cloud/storyrag/internal/usecase/usage"
)

const reapInterval = time.Minute

// Internal interfaces, swapped for fakes in tests.
type sessionUseCase interface {
	Create(ctx context.Context) session.Info
	Touch(sessionID string) (session.Info, error)
	Teardown(ctx context.Context, sessionID string) error
	Stats(sessionID string) (session.Stats, error)
	Documents(sessionID string) ([]document.Document, error)
	RemoveDocument(sessionID, documentID string) error
}

type ingestUseCase interface {
	Ingest(ctx context.Context, sessionID string, req ingest.Request) (document.Document, error)
}

type queryUseCase interface {
	AnswerQuestion(ctx context.Context, sessionID, question string) (answer.Result, error)
}

// Client is the storyrag SDK entry point. Safe for concurrent use.
type Client struct {
	sessions  sessionUseCase
	ingestSvc ingestUseCase
	querySvc  queryUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer
	stop      context.CancelFunc
}

// New wires the pipeline. An embedder and a completer are required,
// either via WithOpenAI or WithEmbedder and WithCompleter.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(cfg, obs)
}

func (c *clientConfig) ragConfig() domain.RAGConfig {
	rag := domain.DefaultRAGConfig()
	if c.chunkSize > 0 {
		rag.ChunkSize = c.chunkSize
		rag.ChunkOverlap = c.chunkOverlap
	}
	if c.topK > 0 {
		rag.TopK = c.topK
	}
	if c.contextBudget > 0 {
		rag.ContextBudget = c.contextBudget
	}
	if c.dimensions > 0 {
		rag.Dimensions = c.dimensions
	}
	if c.metric != "" {
		rag.Metric = domain.Metric(c.metric)
	}
	if c.maxBatchSize > 0 {
		rag.MaxBatchSize = c.maxBatchSize
	}
	return rag
}

func (c *clientConfig) retryPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	if c.retryAttempts > 0 {
		p.MaxAttempts = c.retryAttempts
		p.BaseDelay = c.retryBaseDelay
	}
	return p
}

func wireClient(cfg *clientConfig, obs *observer) (*Client, error) {
	rag := cfg.ragConfig()
	if err := rag.Validate(); err != nil {
		return nil, fmt.Errorf("storyrag: %w", err)
	}
	calls := &metrics.Calls{}
	logger := zap.NewNop()

	var emb domain.Embedder
	var cmp answer.Completer
	if cfg.openai != nil {
		base := &openaiTransport.Config{
			APIKey:     cfg.openai.apiKey,
			BaseURL:    cfg.openai.baseURL,
			Model:      cfg.openai.embeddingModel,
			Dimensions: rag.Dimensions,
			Provider:   "openai",
			Timeout:    60 * time.Second,
			Stats:      &calls.Embedding,
		}
		emb = openaiTransport.NewEmbedder(base)

		cmpCfg := *base
		cmpCfg.Model = cfg.openai.completionModel
		cmpCfg.Stats = &calls.Completion
		cmp = openaiTransport.NewCompleter(&cmpCfg, openaiTransport.CompleterOptions{MaxTokens: 512})
	}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}
	if cfg.completer != nil {
		cmp = &completerAdapter{inner: cfg.completer}
	}
	if emb == nil || cmp == nil {
		return nil, errors.New("storyrag: embedder and completer required (use WithOpenAI or WithEmbedder and WithCompleter)")
	}

	retry := cfg.retryPolicy()
	throttle := resilience.NewThrottle(resilience.ThrottleConfig{
		RequestsPerSecond: cfg.requestsPerSecond,
		Burst:             cfg.burst,
		MaxConcurrent:     cfg.maxConcurrent,
	})

	embOpts := embeddinguc.Options{
		Provider:     "sdk",
		Dimensions:   rag.Dimensions,
		MaxBatchSize: rag.MaxBatchSize,
		Retry:        retry,
		Throttle:     throttle,
		Logger:       logger,
	}
	var budget *embeddinguc.Budget
	if cfg.dailyTokenLimit > 0 || cfg.monthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if cfg.rejectOverBudget {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudget(embeddinguc.BudgetConfig{
			Provider:     "sdk",
			DailyLimit:   cfg.dailyTokenLimit,
			MonthlyLimit: cfg.monthlyTokenLimit,
			Action:       action,
		}, logger)
		embOpts.Budget = budget
	}
	embeddings, err := embeddinguc.NewClient(emb, embOpts)
	if err != nil {
		return nil, fmt.Errorf("storyrag: %w", err)
	}

	index, err := vector.New(rag.Dimensions, rag.Metric)
	if err != nil {
		return nil, fmt.Errorf("storyrag: %w", err)
	}
	sessions := session.NewRegistry(index, cfg.sessionTTL, logger)

	ingestSvc, err := ingest.New(extract.New(), embeddings, index, sessions, rag, logger)
	if err != nil {
		return nil, fmt.Errorf("storyrag: %w", err)
	}
	querySvc := queryuc.New(sessions,
		retrieval.New(embeddings, index, logger),
		answer.New(cmp, retry, throttle, logger),
		rag, logger)

	healthSvc := healthuc.New(nil).With("embedding", embeddings)
	if hc, ok := cmp.(healthuc.Checker); ok {
		healthSvc = healthSvc.With("completion", hc)
	}

	var br usageuc.BudgetReader
	if budget != nil {
		br = budget
	}

	ctx, stop := context.WithCancel(context.Background())
	if cfg.sessionTTL > 0 {
		interval := min(cfg.sessionTTL, reapInterval)
		go sessions.RunReaper(ctx, interval)
	}

	return &Client{
		sessions:  sessions,
		ingestSvc: ingestSvc,
		querySvc:  querySvc,
		healthSvc: healthSvc,
		usageSvc:  usageuc.New(br, calls),
		obs:       obs,
		stop:      stop,
	}, nil
}

// Close stops the idle-session reaper. Sessions are discarded with the Client.
func (c *Client) Close() {
	if c.stop != nil {
		c.stop()
	}
}

// CreateSession opens an empty session.
func (c *Client) CreateSession(ctx context.Context) Session {
	start := time.Now()
	s := sessionFromInfo(c.sessions.Create(ctx))
	c.obs.observe("create_session", s.ID, start, nil)
	return s
}

// Session returns the session stats and refreshes its idle timer.
func (c *Client) Session(ctx context.Context, sessionID string) (st SessionStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_session", sessionID, start, err) }()

	if _, err = c.sessions.Touch(sessionID); err != nil {
		return SessionStats{}, fmt.Errorf("get session: %w", err)
	}
	s, err := c.sessions.Stats(sessionID)
	if err != nil {
		return SessionStats{}, fmt.Errorf("get session: %w", err)
	}
	return SessionStats{
		Session:     sessionFromInfo(s.Info),
		Documents:   s.Documents,
		Chunks:      s.Chunks,
		ChunkCounts: s.ChunkCounts,
	}, nil
}

// DeleteSession discards the session, its documents and its chunks.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_session", sessionID, start, err) }()

	if err = c.sessions.Teardown(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ingest extracts, chunks, embeds and indexes a file into the session.
// Either every chunk is indexed or none is.
func (c *Client) Ingest(ctx context.Context, sessionID, title string, format Format, data []byte) (doc Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", sessionID, start, err) }()

	f, err := document.ParseFormat(string(format))
	if err != nil {
		return Document{}, fmt.Errorf("ingest: %w", err)
	}
	return c.ingest(ctx, sessionID, ingest.Request{Data: data, Format: f, Title: title})
}

// IngestFile is Ingest with the format taken from the file name's extension.
func (c *Client) IngestFile(ctx context.Context, sessionID, filename string, data []byte) (doc Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", sessionID, start, err) }()

	f, err := document.FormatFromFilename(filename)
	if err != nil {
		return Document{}, fmt.Errorf("ingest: %w", err)
	}
	return c.ingest(ctx, sessionID, ingest.Request{Data: data, Format: f, Title: filename})
}

// IngestText indexes pasted text.
func (c *Client) IngestText(ctx context.Context, sessionID, title, text string) (doc Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", sessionID, start, err) }()

	return c.ingest(ctx, sessionID, ingest.Request{Data: []byte(text), Format: document.FormatPasted, Title: title})
}

func (c *Client) ingest(ctx context.Context, sessionID string, req ingest.Request) (Document, error) {
	d, err := c.ingestSvc.Ingest(ctx, sessionID, req)
	if err != nil {
		return Document{}, fmt.Errorf("ingest: %w", err)
	}
	c.obs.indexed(d.ChunkCount())
	return documentFromDomain(d), nil
}

// Documents lists the session's documents, oldest first.
func (c *Client) Documents(ctx context.Context, sessionID string) (docs []Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list_documents", sessionID, start, err) }()

	list, err := c.sessions.Documents(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs = make([]Document, len(list))
	for i := range list {
		docs[i] = documentFromDomain(list[i])
	}
	return docs, nil
}

// RemoveDocument deletes a document and its chunks from the session.
func (c *Client) RemoveDocument(ctx context.Context, sessionID, documentID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("remove_document", sessionID, start, err) }()

	if err = c.sessions.RemoveDocument(sessionID, documentID); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// Ask answers a question from the session's documents.
// A session with no documents fails with ErrEmptyIndex.
func (c *Client) Ask(ctx context.Context, sessionID, question string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", sessionID, start, err) }()

	res, err := c.querySvc.AnswerQuestion(ctx, sessionID, question)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return answerFromResult(res), nil
}
