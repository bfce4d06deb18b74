// internal/repository/forecast_repository.go
package repository

import (
	"context"
	"time"

	"github.com/ordercast/ordercast/internal/domain"
)

type SnapshotRepository interface {
	// SaveSnapshots upserts one row per product x store x forecast date.
	SaveSnapshots(ctx context.Context, snapshots []domain.ForecastSnapshot) error
	// GetUnevaluated returns snapshots whose period ended before the
	// given day and have not been scored yet.
	GetUnevaluated(ctx context.Context, before time.Time) ([]domain.ForecastSnapshot, error)
	// MarkEvaluated flips the evaluated flag. It is the final step of
	// scoring a snapshot and a no-op for already-evaluated rows.
	MarkEvaluated(ctx context.Context, snapshotID int64) error
	GetEvaluatedBefore(ctx context.Context, before time.Time) ([]domain.ForecastSnapshot, error)
	// DeleteEvaluatedBefore prunes evaluated snapshots whose period
	// ended before the cutoff, returning how many rows went away.
	DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error)
}

type AccuracyRepository interface {
	// SaveRecord upserts on product x store x period start.
	SaveRecord(ctx context.Context, record *domain.AccuracyRecord) error
	GetRecords(ctx context.Context, storeID int64, productID string, since time.Time) ([]domain.AccuracyRecord, error)
	GetRecentForStore(ctx context.Context, storeID int64, productID string, limit int) ([]domain.AccuracyRecord, error)
	// GetActiveKeys lists the (store, product) pairs with accuracy
	// history since the cutoff; the learner iterates these.
	GetActiveKeys(ctx context.Context, since time.Time) ([]domain.ProductKey, error)
}

type ParamsRepository interface {
	// Get returns nil without error when no row exists yet.
	Get(ctx context.Context, storeID int64, productID string) (*domain.ForecastParams, error)
	GetBulk(ctx context.Context, storeID int64, productIDs []string) (map[string]*domain.ForecastParams, error)
	GetForStore(ctx context.Context, storeID int64) ([]domain.ForecastParams, error)
	Upsert(ctx context.Context, params *domain.ForecastParams) error
}
