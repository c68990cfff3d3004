package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/hybridsearch/internal/apperror"
	"github.com/connexus-ai/hybridsearch/internal/model"
)

// Searcher is the subset of the orchestrator (C12) the handler needs.
type Searcher interface {
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error)
}

// QueryRecorder observes successful queries for §4.13's suggest popularity
// tracker. Best-effort: implementations must never block or fail the
// request.
type QueryRecorder interface {
	Record(ctx context.Context, query string)
}

// Search implements POST /search: idempotent, retry-safe, and always 200
// once the request itself validates, even when a dependency degraded.
// recorder may be nil.
func Search(svc Searcher, recorder QueryRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.Wrap(apperror.Validation, "malformed request body", err))
			return
		}

		resp, err := svc.Search(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		if recorder != nil {
			go recorder.Record(context.WithoutCancel(r.Context()), req.Query)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
