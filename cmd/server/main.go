package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/hybridsearch/internal/cache"
	"github.com/connexus-ai/hybridsearch/internal/config"
	"github.com/connexus-ai/hybridsearch/internal/gcpclient"
	"github.com/connexus-ai/hybridsearch/internal/handler"
	"github.com/connexus-ai/hybridsearch/internal/middleware"
	"github.com/connexus-ai/hybridsearch/internal/repository"
	"github.com/connexus-ai/hybridsearch/internal/router"
	"github.com/connexus-ai/hybridsearch/internal/service"
)

const Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps, closeDeps, err := buildDependencies(ctx, cfg)
	if err != nil {
		return fmt.Errorf("main: %w", err)
	}
	defer closeDeps()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hybridsearch starting", "version", Version, "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildDependencies wires every component named in SPEC_FULL.md's component
// design into a router.Dependencies, returning a cleanup func that releases
// every pool/client opened along the way, in reverse order.
func buildDependencies(ctx context.Context, cfg *config.Config) (*router.Dependencies, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, closeAll, fmt.Errorf("connecting to vector database: %w", err)
	}
	closers = append(closers, pool.Close)

	vectorRepo := repository.NewVectorRepo(pool, cfg.EmbeddingDim)
	if err := vectorRepo.EnsureCollection(ctx); err != nil {
		closeAll()
		return nil, func() {}, fmt.Errorf("preparing vector collection: %w", err)
	}

	auditRecorder, auditDB := buildAuditLog(ctx, cfg)
	if auditDB != nil {
		closers = append(closers, func() { auditDB.Close() })
	}

	redisClient := buildRedisClient(cfg)
	if redisClient != nil {
		closers = append(closers, func() { redisClient.Close() })
	}
	suggestTracker := cache.NewSuggestTracker(redisClient, service.SynonymCandidates)

	gcpclient.ConfigureRetryCeiling(cfg.LLMTimeout)

	llmClient, llmHealth, closeLLM, err := buildLLMClient(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, func() {}, fmt.Errorf("configuring LLM provider: %w", err)
	}
	if closeLLM != nil {
		closers = append(closers, closeLLM)
	}
	if registry, err := service.NewPromptRegistry(cfg.PromptsDir); err != nil {
		slog.Warn("prompt registry unavailable, falling back to embedded prompts", "dir", cfg.PromptsDir, "error", err)
	} else {
		llmClient.UsePromptRegistry(registry)
	}

	embeddingAdapter, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		closeAll()
		return nil, func() {}, fmt.Errorf("configuring embedding provider: %w", err)
	}
	queryCache := cache.NewQueryEmbeddingCache(cfg.QueryCacheSize, cfg.QueryCacheTTL)
	embedder := service.NewEmbedderService(embeddingAdapter, embeddingAdapter, queryCache, cfg.EmbeddingDim)

	var archiver *service.ArchiverService
	if cfg.ArchiveBucket != "" {
		storageAdapter, err := gcpclient.NewStorageAdapter(ctx)
		if err != nil {
			slog.Warn("content archival disabled, could not initialize object storage", "error", err)
		} else {
			closers = append(closers, storageAdapter.Close)
			archiver = service.NewArchiverService(storageAdapter, cfg.ArchiveBucket)
		}
	}

	cmsClient := service.NewHTTPCMSClient(cfg.ContentSourceBaseURL)
	fetcher := service.NewFetcherService(cmsClient, cfg.FetchConcurrency, 10)
	chunker := service.NewChunkerService(cfg.ChunkSizeChars, cfg.ChunkOverlap)
	analyzer := service.NewAnalyzerService()
	expander := service.NewExpanderService(llmClient, 3)
	store := service.NewDocumentStore()
	retriever := service.NewRetrieverService(store, vectorRepo, embedder, cfg.DefaultTopK, cfg.RetrievalConcurrency)
	fuser := service.NewFuserService(llmClient, cfg.DefaultAIWeight, cfg.RerankTopM)
	answerer := service.NewAnswererService(llmClient)

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)

	orchestrator := service.NewOrchestratorService(
		store, vectorRepo, fetcher, chunker, embedder, analyzer, expander,
		retriever, fuser, answerer, llmClient, metrics, auditRecorder, archiver,
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		MaxRequests: 120,
		Window:      time.Minute,
	})
	closers = append(closers, rateLimiter.Stop)

	vectorStats := handler.VectorStatsFunc(func(ctx context.Context) (int, int, string, error) {
		stats, err := vectorRepo.Stats(ctx)
		return stats.VectorCount, stats.IndexedCount, stats.Status, err
	})

	healthCheckers := map[string]handler.ComponentChecker{
		"vector_index": func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
		"llm": llmHealth.HealthCheck,
	}
	if auditDB != nil {
		healthCheckers["audit_log"] = func(ctx context.Context) error {
			return auditDB.PingContext(ctx)
		}
	}
	if redisClient != nil {
		healthCheckers["suggest_cache"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	deps := &router.Dependencies{
		FrontendURL:        cfg.FrontendURL,
		Metrics:            metrics,
		MetricsReg:         reg,
		Searcher:           orchestrator,
		QueryRecorder:      suggestTracker,
		Indexer:            orchestrator,
		SingleIndexer:      orchestrator,
		DocumentDeleter:    orchestrator,
		Lexical:            store,
		VectorStats:        vectorStats,
		Suggester:          suggestTracker,
		HealthCheckers:     healthCheckers,
		GeneralRateLimiter: rateLimiter,
	}

	return deps, closeAll, nil
}

// buildAuditLog opens the §4.14 audit log's independent Postgres connection
// when AUDIT_DATABASE_URL is configured. A missing configuration disables
// the audit log entirely rather than failing startup, matching its
// "optional" status in the component design.
func buildAuditLog(ctx context.Context, cfg *config.Config) (service.AuditRecorder, *sql.DB) {
	if cfg.AuditDatabaseURL == "" {
		slog.Info("search audit log disabled, AUDIT_DATABASE_URL not set")
		return nil, nil
	}
	db, err := repository.OpenAuditLogDB(cfg.AuditDatabaseURL)
	if err != nil {
		slog.Warn("search audit log disabled, could not connect", "error", err)
		return nil, nil
	}
	repo := repository.NewAuditLogRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Warn("search audit log disabled, schema setup failed", "error", err)
		db.Close()
		return nil, nil
	}
	return repo, db
}

// buildRedisClient connects the §4.13 suggest tracker's Redis backing store
// when REDIS_ADDR is configured. A nil return makes cache.SuggestTracker a
// no-op, per its documented contract.
func buildRedisClient(cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		slog.Info("suggest tracker disabled, REDIS_ADDR not set")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
}

// llmHealthChecker is implemented by both gcpclient adapters; service.LLMClient
// itself has no HealthCheck, so GET /health talks to the adapter directly.
type llmHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// buildLLMClient selects the Vertex AI or Anthropic backend for C8 per
// LLM_PROVIDER, returning a cleanup func to release the underlying client
// when one is needed (Vertex AI's SDK holds a connection; the Anthropic SDK
// does not).
func buildLLMClient(ctx context.Context, cfg *config.Config) (*service.LLMClient, llmHealthChecker, func(), error) {
	switch cfg.LLMProvider {
	case "anthropic":
		adapter := gcpclient.NewAnthropicAdapter(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		return service.NewLLMClient(adapter, cfg.LLMTimeout, cfg.LLMMaxInFlight), adapter, nil, nil
	default:
		adapter, err := gcpclient.NewGenAIAdapter(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
		if err != nil {
			return nil, nil, nil, err
		}
		return service.NewLLMClient(adapter, cfg.LLMTimeout, cfg.LLMMaxInFlight), adapter, adapter.Close, nil
	}
}
