package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string
	FrontendURL string

	// Content source (C4)
	ContentSourceBaseURL string
	ContentTypes         []string
	FetchPageSize        int
	FetchMaxPages        int
	FetchConcurrency     int

	// Vector DB (C2) — Postgres + pgvector backing store
	DatabaseURL      string
	DatabaseMaxConns int
	VectorCollection string
	EmbeddingDim     int
	VectorBatchSize  int

	// Audit log (§4.14) — optional, independent Postgres DSN via lib/pq
	AuditDatabaseURL string

	// Suggest tracker (§4.13) — optional Redis backing
	RedisAddr string
	RedisDB   int

	// Content archival (§4.4a) — optional GCS bucket
	ArchiveBucket string
	GCPProject    string

	// Embedder (C3)
	EmbeddingProvider string // "vertex" (default) or a stub for tests
	EmbeddingLocation string
	EmbeddingModel    string
	QueryCacheSize    int
	QueryCacheTTL     time.Duration

	// LLM client (C8)
	LLMProvider      string // "vertex" or "anthropic"
	VertexAILocation string
	VertexAIModel    string
	AnthropicModel   string
	AnthropicAPIKey  string
	LLMTimeout       time.Duration
	LLMMaxInFlight   int

	// Chunker (C5)
	ChunkSizeChars  int
	ChunkOverlap    int

	// Search defaults (C9/C10/C12)
	DefaultAIWeight       float64
	DefaultTopK           int
	RerankTopM            int
	RetrievalConcurrency  int
	RequestTimeout        time.Duration
	PromptsDir            string

	InternalAuthSecret string
}

// Load reads configuration from environment variables.
// Required variables cause an error if missing; everything else has a default.
func Load() (*Config, error) {
	sourceURL := os.Getenv("CONTENT_SOURCE_BASE_URL")
	if sourceURL == "" {
		return nil, fmt.Errorf("config.Load: CONTENT_SOURCE_BASE_URL is required")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),
		FrontendURL: envStr("FRONTEND_URL", "http://localhost:3000"),

		ContentSourceBaseURL: sourceURL,
		ContentTypes:         envList("CONTENT_TYPES", []string{"post", "page"}),
		FetchPageSize:        envInt("FETCH_PAGE_SIZE", 50),
		FetchMaxPages:        envInt("FETCH_MAX_PAGES", 100),
		FetchConcurrency:     envInt("FETCH_CONCURRENCY", 8),

		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),
		VectorCollection: envStr("VECTOR_COLLECTION", "search_chunks"),
		EmbeddingDim:     envInt("EMBEDDING_DIMENSIONS", 384),
		VectorBatchSize:  envInt("VECTOR_BATCH_SIZE", 50),

		AuditDatabaseURL: envStr("AUDIT_DATABASE_URL", ""),

		RedisAddr: envStr("REDIS_ADDR", ""),
		RedisDB:   envInt("REDIS_DB", 0),

		ArchiveBucket: envStr("ARCHIVE_BUCKET", ""),
		GCPProject:    envStr("GOOGLE_CLOUD_PROJECT", ""),

		EmbeddingProvider: envStr("EMBEDDING_PROVIDER", "vertex"),
		EmbeddingLocation: envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:    envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		QueryCacheSize:    envInt("QUERY_EMBEDDING_CACHE_SIZE", 1000),
		QueryCacheTTL:     envDuration("QUERY_EMBEDDING_CACHE_TTL", 24*time.Hour),

		LLMProvider:      envStr("LLM_PROVIDER", "vertex"),
		VertexAILocation: envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:    envStr("VERTEX_AI_MODEL", "gemini-2.5-flash"),
		AnthropicModel:   envStr("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		AnthropicAPIKey:  envStr("ANTHROPIC_API_KEY", ""),
		LLMTimeout:       envDuration("LLM_TIMEOUT", 15*time.Second),
		LLMMaxInFlight:   envInt("LLM_MAX_IN_FLIGHT", 16),

		ChunkSizeChars: envInt("CHUNK_SIZE_CHARS", 1000),
		ChunkOverlap:   envInt("CHUNK_OVERLAP_CHARS", 200),

		DefaultAIWeight:      envFloat("DEFAULT_AI_WEIGHT", 0.7),
		DefaultTopK:          envInt("DEFAULT_TOP_K", 20),
		RerankTopM:           envInt("RERANK_TOP_M", 20),
		RetrievalConcurrency: envInt("RETRIEVAL_CONCURRENCY", 8),
		RequestTimeout:       envDuration("REQUEST_TIMEOUT", 30*time.Second),
		PromptsDir:           envStr("PROMPTS_DIR", "./internal/service/prompts"),

		InternalAuthSecret: envStr("INTERNAL_AUTH_SECRET", ""),
	}

	if cfg.LLMProvider == "anthropic" && cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("config.Load: ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
