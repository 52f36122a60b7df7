package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/storyrag/internal/config"
	dbRedis "github.com/kailas-cloud/storyrag/internal/db/redis"
	"github.com/kailas-cloud/storyrag/internal/domain"
	"github.com/kailas-cloud/storyrag/internal/extract"
	logpkg "github.com/kailas-cloud/storyrag/internal/logger"
	"github.com/kailas-cloud/storyrag/internal/metrics"
	budgetrepo "github.com/kailas-cloud/storyrag/internal/repository/budget"
	"github.com/kailas-cloud/storyrag/internal/repository/embcache"
	"github.com/kailas-cloud/storyrag/internal/repository/vector"
	"github.com/kailas-cloud/storyrag/internal/resilience"
	chiTransport "github.com/kailas-cloud/storyrag/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/storyrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/storyrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/storyrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/storyrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/storyrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/storyrag/internal/usecase/query"
	retrievaluc "github.com/kailas-cloud/storyrag/internal/usecase/retrieval"
	sessionuc "github.com/kailas-cloud/storyrag/internal/usecase/session"
	usageuc "github.com/kailas-cloud/storyrag/internal/usecase/usage"
	"github.com/kailas-cloud/storyrag/internal/version"
)

const (
	budgetDailyTTL = 48 * time.Hour
	budgetMonthTTL = 62 * 24 * time.Hour
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting storyrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("redis", cfg.Database.Enabled()),
		zap.String("embedding_model", cfg.LLM.EmbeddingModel),
		zap.String("completion_model", cfg.LLM.CompletionModel),
	)

	domain.KeyPrefix = cfg.Storage.KeyPrefix
	metrics.RegisterModelMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	rag := cfg.RAGSettings()
	calls := &metrics.Calls{}

	// Redis is optional: without it there is no embedding cache and budgets live in memory only.
	var store *dbRedis.Store
	if cfg.Database.Enabled() {
		var err error
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			return fmt.Errorf("create redis store: %w", err)
		}
		defer store.Close()

		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs))
	}

	retry := resilience.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		Jitter:      !cfg.Retry.DisableJitter,
	}
	// One throttle per API key: embeddings and completions share the provider's limits.
	throttle := resilience.NewThrottle(resilience.ThrottleConfig{
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		MaxConcurrent:     cfg.LLM.MaxConcurrency,
	})

	providerCfg := func(model string, stats *metrics.CallStats) *openaiTransport.Config {
		return &openaiTransport.Config{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      model,
			Dimensions: cfg.LLM.Dimensions,
			Provider:   cfg.LLM.Provider,
			Timeout:    time.Duration(cfg.LLM.TimeoutSec) * time.Second,
			Stats:      stats,
			Logger:     logger,
		}
	}

	var embedder domain.Embedder = openaiTransport.NewEmbedder(providerCfg(cfg.LLM.EmbeddingModel, &calls.Embedding))
	if store != nil {
		embedder = embcache.New(embedder, store, cfg.LLM.EmbeddingModel, rag.Dimensions,
			time.Duration(cfg.LLM.CacheTTLHours)*time.Hour, metrics.EmbeddingCacheTotal, logger)
	}

	budget := buildBudget(ctx, cfg, store, logger)

	opts := embeddinguc.Options{
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.EmbeddingModel,
		Dimensions:   rag.Dimensions,
		MaxBatchSize: rag.MaxBatchSize,
		Retry:        retry,
		Throttle:     throttle,
		Logger:       logger,
	}
	// Assign only a non-nil *Budget: a typed nil in the interface would not compare equal to nil.
	if budget != nil {
		opts.Budget = budget
	}
	embeddings, err := embeddinguc.NewClient(embedder, opts)
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}

	completer := openaiTransport.NewCompleter(
		providerCfg(cfg.LLM.CompletionModel, &calls.Completion),
		openaiTransport.CompleterOptions{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens},
	)

	index, err := vector.New(rag.Dimensions, rag.Metric)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}

	sessions := sessionuc.NewRegistry(index, time.Duration(cfg.Session.TTLMin)*time.Minute, logger)
	if cfg.Session.TTLMin > 0 {
		go sessions.RunReaper(ctx, time.Duration(cfg.Session.ReapIntervalSec)*time.Second)
	}

	extractor := extract.New(extract.WithUploadLimit(cfg.Session.MaxUploadBytes))
	ingestSvc, err := ingestuc.New(extractor, embeddings, index, sessions, rag, logger)
	if err != nil {
		return fmt.Errorf("create ingest service: %w", err)
	}
	retriever := retrievaluc.New(embeddings, index, logger)
	synthesizer := answeruc.New(completer, retry, throttle, logger)
	querySvc := queryuc.New(sessions, retriever, synthesizer, rag, logger)

	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader, calls)

	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger).
		With("embedding", embeddings).
		With("completion", completer)

	server := chiTransport.NewServer(
		sessions, ingestSvc, querySvc, usageSvc, healthSvc, calls, cfg.Session.MaxUploadBytes, logger,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	return nil
}

// buildBudget returns nil when no limit is configured.
func buildBudget(ctx context.Context, cfg config.Config, store *dbRedis.Store, logger *zap.Logger) *embeddinguc.Budget {
	bc := cfg.LLM.Budget
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}
	budget := embeddinguc.NewBudget(embeddinguc.BudgetConfig{
		Provider:     cfg.LLM.Provider,
		DailyLimit:   bc.DailyTokenLimit,
		MonthlyLimit: bc.MonthlyTokenLimit,
		Action:       embeddinguc.BudgetAction(bc.Action),
	}, logger)
	if store != nil {
		budget.WithStore(ctx, budgetrepo.New(store, budgetDailyTTL, budgetMonthTTL))
	}
	logger.Info("Embedding budget enabled",
		zap.Int64("daily_limit", bc.DailyTokenLimit),
		zap.Int64("monthly_limit", bc.MonthlyTokenLimit),
		zap.String("action", bc.Action),
	)
	return budget
}
