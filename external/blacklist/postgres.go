package blacklist

import (
	"context"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (r *PostgresStore) Load(ctx context.Context) ([]blacklist.Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, category, status, value, reason, entry_date
		 FROM blacklist_entries ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []blacklist.Entry
	for rows.Next() {
		var (
			id       int64
			category string
			status   string
			e        blacklist.Entry
		)
		if err := rows.Scan(&id, &category, &status, &e.Value, &e.Reason, &e.Date); err != nil {
			return nil, err
		}
		e.Ref = int(id)
		e.Category = blacklist.Category(category)
		e.Status = blacklist.Status(status)
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *PostgresStore) Append(ctx context.Context, entry blacklist.Entry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO blacklist_entries (category, status, value, reason, entry_date)
		 VALUES ($1, $2, $3, $4, $5)`,
		string(entry.Category), string(entry.Status), entry.Value, entry.Reason, entry.Date)
	return err
}

func (r *PostgresStore) Update(ctx context.Context, entry blacklist.Entry) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE blacklist_entries
		 SET status = $2, reason = $3, entry_date = $4, updated_at = NOW()
		 WHERE id = $1`,
		int64(entry.Ref), string(entry.Status), entry.Reason, entry.Date)
	return err
}
