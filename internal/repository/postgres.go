package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
)

var _ CallLogRepository = (*PostgresCallLogRepo)(nil)

// PostgresCallLogRepo implements CallLogRepository over pgx.
type PostgresCallLogRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCallLogRepo(pool *pgxpool.Pool) *PostgresCallLogRepo {
	return &PostgresCallLogRepo{pool: pool}
}

// EnsureSchema creates the call log table when missing. The table holds
// audit data only; cache state is never persisted.
func (r *PostgresCallLogRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS call_log (
			id          BIGSERIAL PRIMARY KEY,
			tenant      TEXT NOT NULL,
			phone       TEXT NOT NULL,
			found       BOOLEAN NOT NULL,
			note        TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure call_log schema: %w", err)
	}
	return nil
}

func (r *PostgresCallLogRepo) Insert(ctx context.Context, entry domain.CallLogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO call_log (tenant, phone, found, note, duration_ms) VALUES ($1, $2, $3, $4, $5)`,
		entry.Tenant, entry.Phone, entry.Found, entry.Note, entry.DurationMS)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}

func (r *PostgresCallLogRepo) ListRecent(ctx context.Context, tenant string, limit int) ([]domain.CallLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant, phone, found, note, duration_ms, created_at
		 FROM call_log WHERE tenant = $1 ORDER BY id DESC LIMIT $2`,
		tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("list call log: %w", err)
	}
	defer rows.Close()

	var entries []domain.CallLogEntry
	for rows.Next() {
		var entry domain.CallLogEntry
		if err := rows.Scan(&entry.ID, &entry.Tenant, &entry.Phone, &entry.Found, &entry.Note, &entry.DurationMS, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan call log: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call log: %w", err)
	}
	return entries, nil
}
