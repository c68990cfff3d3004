package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// AuditLogRepo implements §4.14's search audit log over a plain
// database/sql connection, independent of the pgx pool C1/C2 use — a
// best-effort side channel whose failure must never affect a search
// response.
type AuditLogRepo struct {
	db *sql.DB
}

// OpenAuditLogDB opens a lib/pq connection pool for the audit log, separate
// from the pgxpool used by the vector index.
func OpenAuditLogDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository.OpenAuditLogDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository.OpenAuditLogDB: ping: %w", err)
	}
	return db, nil
}

// NewAuditLogRepo wraps an already-opened *sql.DB.
func NewAuditLogRepo(db *sql.DB) *AuditLogRepo {
	return &AuditLogRepo{db: db}
}

func (r *AuditLogRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS search_audit_log (
			id SERIAL PRIMARY KEY,
			query TEXT NOT NULL,
			intent TEXT NOT NULL,
			result_count INT NOT NULL,
			response_time_ms BIGINT NOT NULL,
			semantic_degraded BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("repository.AuditLogRepo.EnsureSchema: %w", err)
	}
	return nil
}

// Record inserts one audit entry. Best-effort: callers should log and
// discard the error rather than fail the request it describes.
func (r *AuditLogRepo) Record(ctx context.Context, entry model.AuditEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO search_audit_log (query, intent, result_count, response_time_ms, semantic_degraded)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.Query, entry.Intent, entry.ResultCount, entry.ResponseTimeMs, entry.SemanticDegraded,
	)
	if err != nil {
		return fmt.Errorf("repository.AuditLogRepo.Record: %w", err)
	}
	return nil
}

// ZeroResultQueries returns the most recent limit queries that returned zero
// results — the raw feed behind content-gap reporting.
func (r *AuditLogRepo) ZeroResultQueries(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT query, intent, result_count, response_time_ms, semantic_degraded, created_at
		FROM search_audit_log
		WHERE result_count = 0
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.AuditLogRepo.ZeroResultQueries: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.Query, &e.Intent, &e.ResultCount, &e.ResponseTimeMs, &e.SemanticDegraded, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.AuditLogRepo.ZeroResultQueries: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
