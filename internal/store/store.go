// Package store persists conversion records ingested by the webhook
// receiver. Two drivers are provided: sqlite for single-node deployments
// and postgres for shared ones.
package store

import (
	"context"
	"time"

	"github.com/adpulse/adpulse/internal/model"
)

// Store defines the conversion persistence interface.
type Store interface {
	// RecordConversion inserts a conversion, assigning an id if absent.
	RecordConversion(ctx context.Context, c model.Conversion) (*model.Conversion, error)

	// ListConversions returns conversions whose occurred_at falls inside
	// [since, until), newest first.
	ListConversions(ctx context.Context, since, until time.Time) ([]model.Conversion, error)

	// TotalRevenue sums conversion value over [since, until).
	TotalRevenue(ctx context.Context, since, until time.Time) (float64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
