package database

import (
	"context"
	"database/sql"

	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

// schemaStatements create the catalog and state tables. Infinite wait values
// are stored as NULL.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS facilities (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL DEFAULT '',
		poi_type     TEXT NOT NULL DEFAULT 'other',
		num_servers  INTEGER NOT NULL DEFAULT 1,
		service_rate DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_facilities_poi_type ON facilities (poi_type)`,
	`CREATE TABLE IF NOT EXISTS queue_states (
		facility_id    TEXT PRIMARY KEY,
		arrival_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
		wait_minutes   DOUBLE PRECISION,
		ci_lower       DOUBLE PRECISION NOT NULL DEFAULT 0,
		ci_upper       DOUBLE PRECISION,
		utilization    DOUBLE PRECISION NOT NULL DEFAULT 0,
		sample_count   INTEGER NOT NULL DEFAULT 0,
		status         TEXT NOT NULL DEFAULT 'low',
		last_updated   TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_published TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_states_status ON queue_states (status)`,
}

// EnsureSchema creates missing tables and indexes
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewInternalError("failed to ensure schema", err)
		}
	}
	return nil
}
