package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/adpulse/adpulse/internal/model"
)

// pgPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS conversions (
	id          TEXT PRIMARY KEY,
	order_id    TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	currency    TEXT NOT NULL DEFAULT 'USD',
	occurred_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversions_occurred_at ON conversions(occurred_at);
CREATE INDEX IF NOT EXISTS idx_conversions_order_id ON conversions(order_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordConversion(ctx context.Context, c model.Conversion) (*model.Conversion, error) {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversions (id, order_id, value, currency, occurred_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OrderID, c.Value, c.Currency, c.OccurredAt, c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert conversion")
	}
	return &c, nil
}

func (s *PostgresStore) ListConversions(ctx context.Context, since, until time.Time) ([]model.Conversion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, value, currency, occurred_at, created_at
		 FROM conversions WHERE occurred_at >= $1 AND occurred_at < $2
		 ORDER BY occurred_at DESC`,
		since, until,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list conversions")
	}
	defer rows.Close()

	var out []model.Conversion
	for rows.Next() {
		var c model.Conversion
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Value, &c.Currency, &c.OccurredAt, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan conversion")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate conversions")
}

func (s *PostgresStore) TotalRevenue(ctx context.Context, since, until time.Time) (float64, error) {
	var total *float64
	err := s.pool.QueryRow(ctx,
		`SELECT SUM(value) FROM conversions WHERE occurred_at >= $1 AND occurred_at < $2`,
		since, until,
	).Scan(&total)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: total revenue")
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// Open creates the configured driver: "postgres" when the URL looks like a
// postgres DSN, sqlite otherwise.
func Open(ctx context.Context, driver, url string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, url)
	case "", "sqlite":
		return NewSQLite(url)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
