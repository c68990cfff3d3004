package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/hybridsearch/internal/handler"
	"github.com/connexus-ai/hybridsearch/internal/middleware"
)

// Dependencies holds every service the router wires into a handler.
type Dependencies struct {
	FrontendURL string
	Metrics     *middleware.Metrics
	MetricsReg  *prometheus.Registry

	Searcher        handler.Searcher
	QueryRecorder   handler.QueryRecorder // may be nil
	Indexer         handler.Indexer
	SingleIndexer   handler.SingleDocumentIndexer
	DocumentDeleter handler.DocumentDeleter
	Lexical         handler.LexicalStatsProvider
	VectorStats     handler.VectorStatsFunc // may be nil
	Suggester       handler.SuggestProvider // may be nil
	HealthCheckers  map[string]handler.ComponentChecker

	// GeneralRateLimiter bounds requests per remote address. nil disables
	// rate limiting.
	GeneralRateLimiter *middleware.RateLimiter
}

// New builds the Chi router implementing the External Interfaces surface:
// POST /search, POST /index, POST /index-single, DELETE /document/{id},
// GET /health, GET /stats, GET /suggest, plus GET /metrics.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/health", handler.Health(deps.HealthCheckers))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	r.Group(func(r chi.Router) {
		if deps.GeneralRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.GeneralRateLimiter))
		}

		requestTimeout := middleware.Timeout(30 * time.Second)
		indexTimeout := middleware.Timeout(5 * time.Minute)

		r.With(requestTimeout).Post("/search", handler.Search(deps.Searcher, deps.QueryRecorder))
		r.With(indexTimeout).Post("/index", handler.Index(deps.Indexer))
		r.With(requestTimeout).Post("/index-single", handler.IndexSingle(deps.SingleIndexer))
		r.With(requestTimeout).Delete("/document/{id}", handler.DeleteDocument(deps.DocumentDeleter))
		r.With(requestTimeout).Get("/stats", handler.Stats(deps.Lexical, deps.VectorStats))
		if deps.Suggester != nil {
			r.With(requestTimeout).Get("/suggest", handler.Suggest(deps.Suggester))
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
