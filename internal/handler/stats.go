package handler

import (
	"context"
	"net/http"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// LexicalStatsProvider is the subset of C1 (DocumentStore) GET /stats needs.
type LexicalStatsProvider interface {
	Count() (docs int, chunks int)
	VocabularySize() int
}

// VectorStatsFunc adapts C2 (VectorRepo.Stats) to what GET /stats needs,
// without the handler package importing the repository package. May be nil
// if no vector index is configured.
type VectorStatsFunc func(ctx context.Context) (vectorCount, indexedCount int, status string, err error)

// Stats implements GET /stats, combining lexical and vector index counts.
// A vector store failure degrades the reported status but never fails the
// request.
func Stats(lexical LexicalStatsProvider, vectors VectorStatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, chunks := lexical.Count()
		stats := model.Stats{
			DocumentCount:  docs,
			ChunkCount:     chunks,
			VocabularySize: lexical.VocabularySize(),
			IndexStatus:    "ok",
		}

		if vectors != nil {
			vectorCount, _, status, err := vectors(r.Context())
			if err != nil {
				stats.IndexStatus = "degraded"
			} else {
				stats.VectorCount = vectorCount
				stats.IndexStatus = status
			}
		}

		writeJSON(w, http.StatusOK, stats)
	}
}
