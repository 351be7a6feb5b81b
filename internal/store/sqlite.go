package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/adpulse/adpulse/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS conversions (
	id          TEXT PRIMARY KEY,
	order_id    TEXT NOT NULL,
	value       REAL NOT NULL,
	currency    TEXT NOT NULL DEFAULT 'USD',
	occurred_at DATETIME NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_conversions_occurred_at ON conversions(occurred_at);
CREATE INDEX IF NOT EXISTS idx_conversions_order_id ON conversions(order_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordConversion(ctx context.Context, c model.Conversion) (*model.Conversion, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.OccurredAt.IsZero() {
		c.OccurredAt = time.Now().UTC()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, order_id, value, currency, occurred_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrderID, c.Value, c.Currency, c.OccurredAt, c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert conversion")
	}
	return &c, nil
}

func (s *SQLiteStore) ListConversions(ctx context.Context, since, until time.Time) ([]model.Conversion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, value, currency, occurred_at, created_at
		 FROM conversions WHERE occurred_at >= ? AND occurred_at < ?
		 ORDER BY occurred_at DESC`,
		since, until,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list conversions")
	}
	defer rows.Close()

	var out []model.Conversion
	for rows.Next() {
		var c model.Conversion
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Value, &c.Currency, &c.OccurredAt, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan conversion")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate conversions")
}

func (s *SQLiteStore) TotalRevenue(ctx context.Context, since, until time.Time) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(value) FROM conversions WHERE occurred_at >= ? AND occurred_at < ?`,
		since, until,
	).Scan(&total)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: total revenue")
	}
	return total.Float64, nil
}
