package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/hybridsearch/internal/model"
	"github.com/connexus-ai/hybridsearch/internal/service"
)

// vectorUpsertBatchSize is the default batch cap from §4.2.
const vectorUpsertBatchSize = 50

// VectorRepo implements C2, the Vector Index Client, backed by Postgres with
// the pgvector extension.
type VectorRepo struct {
	pool *pgxpool.Pool
	dim  int
}

// NewVectorRepo creates a VectorRepo for a fixed embedding dimension.
func NewVectorRepo(pool *pgxpool.Pool, dim int) *VectorRepo {
	return &VectorRepo{pool: pool, dim: dim}
}

// Compile-time checks against the service-layer interfaces.
var (
	_ service.VectorIndexClient = (*VectorRepo)(nil)
	_ service.VectorIndexWriter = (*VectorRepo)(nil)
)

// EnsureCollection creates the backing table and indexes if they do not
// already exist, idempotently. The vector column's dimension is fixed at
// DDL time; pgvector requires a literal, not a bind parameter.
func (r *VectorRepo) EnsureCollection(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS document_vectors (
			id BIGINT PRIMARY KEY,
			chunk_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			ordinal INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, r.dim)
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("repository.EnsureCollection: create table: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS document_vectors_document_id_idx ON document_vectors (document_id)`); err != nil {
		return fmt.Errorf("repository.EnsureCollection: document_id index: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS document_vectors_embedding_idx
		ON document_vectors USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`); err != nil {
		return fmt.Errorf("repository.EnsureCollection: embedding index: %w", err)
	}

	return nil
}

// stableChunkID derives the integer point id from a chunk id via a stable
// hash, per §4.2.
func stableChunkID(chunkID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(chunkID))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// UpsertBatch replaces every vector for documentID, inserting in sub-batches
// capped at vectorUpsertBatchSize. A failure mid-way leaves the document's
// old vectors deleted but the new set partially written; the caller (C12)
// treats this document as failed and leaves it out of the document store
// swap, per §4.2's "partial success" contract.
func (r *VectorRepo) UpsertBatch(ctx context.Context, documentID string, chunks []*model.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("repository.UpsertBatch: chunk count (%d) != vector count (%d)", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM document_vectors WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("repository.UpsertBatch: clear existing: %w", err)
	}

	now := time.Now().UTC()
	for start := 0; start < len(chunks); start += vectorUpsertBatchSize {
		end := start + vectorUpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			c := chunks[i]
			batch.Queue(`
				INSERT INTO document_vectors (id, chunk_id, document_id, ordinal, content, embedding, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					content = EXCLUDED.content, embedding = EXCLUDED.embedding, created_at = EXCLUDED.created_at`,
				stableChunkID(c.ID), c.ID, documentID, c.Ordinal, c.Content, pgvector.NewVector(vectors[i]), now,
			)
		}

		br := r.pool.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("repository.UpsertBatch: chunk %d: %w", i, err)
			}
		}
		br.Close()
	}

	return nil
}

// semanticOversample widens the candidate pool pulled from the nearest-chunk
// scan before grouping by document, so documents aren't starved when their
// best chunk ranks just outside limit.
const semanticOversample = 4

// SemanticSearch finds the documents whose nearest chunk is closest to
// vector, by cosine similarity, one row per document (§4.2).
func (r *VectorRepo) SemanticSearch(ctx context.Context, vector []float32, limit int) ([]service.VectorHit, error) {
	embedding := pgvector.NewVector(vector)

	rows, err := r.pool.Query(ctx, `
		WITH nearest AS (
			SELECT document_id, 1 - (embedding <=> $1::vector) AS score
			FROM document_vectors
			ORDER BY embedding <=> $1::vector
			LIMIT $2
		)
		SELECT document_id, MAX(score) AS score
		FROM nearest
		GROUP BY document_id
		ORDER BY score DESC
		LIMIT $3`,
		embedding, limit*semanticOversample, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.SemanticSearch: %w", err)
	}
	defer rows.Close()

	var hits []service.VectorHit
	for rows.Next() {
		var hit service.VectorHit
		if err := rows.Scan(&hit.DocumentID, &hit.Score); err != nil {
			return nil, fmt.Errorf("repository.SemanticSearch: scan: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// DeleteDocument removes every vector belonging to documentID.
func (r *VectorRepo) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM document_vectors WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("repository.DeleteDocument: %w", err)
	}
	return nil
}

// VectorStats reports §4.2's stats() contract.
type VectorStats struct {
	VectorCount  int
	IndexedCount int
	Status       string
}

// Stats returns the current vector and distinct-document counts.
func (r *VectorRepo) Stats(ctx context.Context) (VectorStats, error) {
	var stats VectorStats
	err := r.pool.QueryRow(ctx, `
		SELECT count(*), count(DISTINCT document_id) FROM document_vectors`,
	).Scan(&stats.VectorCount, &stats.IndexedCount)
	if err != nil {
		slog.Error("vector stats query failed", "error", err)
		stats.Status = "degraded"
		return stats, fmt.Errorf("repository.Stats: %w", err)
	}
	stats.Status = "ok"
	return stats, nil
}
