package blacklist

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS blacklist_entries (
		id BIGSERIAL PRIMARY KEY,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Active',
		value TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		entry_date TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blacklist_entries_lookup ON blacklist_entries (category, value, status)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
