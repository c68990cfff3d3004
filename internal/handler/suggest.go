package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/connexus-ai/hybridsearch/internal/cache"
)

const defaultSuggestLimit = 10

// SuggestProvider is the subset of §4.13's popularity tracker the handler
// needs. Recording queries goes through QueryRecorder (see search.go).
type SuggestProvider interface {
	Suggest(ctx context.Context, prefix string, limit int) []cache.Suggestion
}

// Suggest implements GET /suggest?query=...&limit=....
func Suggest(svc SuggestProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		limit := defaultSuggestLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		suggestions := svc.Suggest(r.Context(), query, limit)
		queries := make([]string, len(suggestions))
		for i, s := range suggestions {
			queries[i] = s.Query
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": queries})
	}
}
