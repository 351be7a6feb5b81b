package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpulse/adpulse/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresMigrate(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgres(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordConversion(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgres(t)
	mock.ExpectExec("INSERT INTO conversions").
		WithArgs(pgxmock.AnyArg(), "order-42", 120.5, "EUR", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	occurred := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	stored, err := s.RecordConversion(context.Background(), model.Conversion{
		OrderID:    "order-42",
		Value:      120.5,
		Currency:   "EUR",
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, occurred, stored.OccurredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListConversions(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgres(t)

	occurred := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	created := occurred.Add(time.Minute)
	mock.ExpectQuery("SELECT id, order_id, value, currency, occurred_at, created_at").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "order_id", "value", "currency", "occurred_at", "created_at"}).
			AddRow("c1", "order-1", 50.0, "USD", occurred, created))

	got, err := s.ListConversions(context.Background(), occurred.Add(-time.Hour), occurred.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "order-1", got[0].OrderID)
	assert.Equal(t, 50.0, got[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTotalRevenue(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgres(t)

	total := 60.75
	mock.ExpectQuery("SELECT SUM").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(&total))

	got, err := s.TotalRevenue(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 60.75, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTotalRevenueEmptyWindow(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT SUM").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow((*float64)(nil)))

	got, err := s.TotalRevenue(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Zero(t, got, "SUM over no rows is NULL, reported as zero")
	assert.NoError(t, mock.ExpectationsWereMet())
}
