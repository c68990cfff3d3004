package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// ComponentChecker reports whether one dependency (vector index, LLM
// provider, audit log, ...) is reachable.
type ComponentChecker func(ctx context.Context) error

// Health returns a handler implementing GET /health (§ External Interfaces):
// `{status: "healthy"|"degraded", components: {...}}`. 200 unless every
// checked component has failed, in which case 503.
func Health(checkers map[string]ComponentChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		components := make(map[string]string, len(checkers))
		failures := 0
		for name, check := range checkers {
			if check == nil {
				components[name] = "ok"
				continue
			}
			if err := check(ctx); err != nil {
				components[name] = "down"
				failures++
				continue
			}
			components[name] = "ok"
		}

		status := "healthy"
		httpStatus := http.StatusOK
		if failures > 0 {
			status = "degraded"
		}
		if len(checkers) > 0 && failures == len(checkers) {
			httpStatus = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(model.HealthStatus{Status: status, Components: components})
	}
}
