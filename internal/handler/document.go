package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DocumentDeleter is the subset of the orchestrator (C12) DELETE /document/{id}
// needs.
type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, id string) error
}

// DeleteDocument implements DELETE /document/{id}: idempotent, always 200
// whether the document was present or not.
func DeleteDocument(svc DocumentDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, r, errMissingID)
			return
		}
		if err := svc.DeleteDocument(r.Context(), id); err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
