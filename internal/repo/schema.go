package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы сервиса. Все операторы идемпотентны.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS order_snapshots (
		board    TEXT PRIMARY KEY,
		orders   JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS driver_reports (
		id           UUID PRIMARY KEY,
		date_from    DATE NOT NULL,
		date_to      DATE NOT NULL,
		driver_ids   BIGINT[] NOT NULL DEFAULT '{}',
		error        TEXT,
		report       JSONB NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS driver_reports_generated_at_idx
		ON driver_reports (generated_at DESC)`,
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
