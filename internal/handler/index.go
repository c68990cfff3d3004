package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/hybridsearch/internal/apperror"
	"github.com/connexus-ai/hybridsearch/internal/model"
)

// Indexer is the subset of the orchestrator (C12) the indexing handlers need.
type Indexer interface {
	IndexDocuments(ctx context.Context, types []string, forceFull bool) (*model.IndexResult, error)
}

// Index implements POST /index: fetch, chunk, embed and upsert documents of
// the requested content types (all configured types if omitted).
func Index(svc Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.IndexRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, r, apperror.Wrap(apperror.Validation, "malformed request body", err))
				return
			}
		}

		result, err := svc.IndexDocuments(r.Context(), req.Types, req.ForceFull)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// SingleDocumentIndexer upserts one already-fetched document, bypassing the
// CMS fetch stage — used by POST /index-single for CMS-push webhooks.
type SingleDocumentIndexer interface {
	IndexSingle(ctx context.Context, doc *model.Document) error
}

// IndexSingle implements POST /index-single.
func IndexSingle(svc SingleDocumentIndexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc model.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			WriteError(w, r, apperror.Wrap(apperror.Validation, "malformed request body", err))
			return
		}
		if doc.ID == "" {
			WriteError(w, r, apperror.New(apperror.Validation, "document id is required"))
			return
		}

		if err := svc.IndexSingle(r.Context(), &doc); err != nil {
			WriteError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
