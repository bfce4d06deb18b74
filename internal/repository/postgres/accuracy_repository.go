// internal/repository/postgres/accuracy_repository.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ordercast/ordercast/internal/domain"
)

type accuracyRepository struct {
	db *DB
}

func NewAccuracyRepository(db *DB) *accuracyRepository {
	return &accuracyRepository{db: db}
}

func (r *accuracyRepository) SaveRecord(ctx context.Context, record *domain.AccuracyRecord) error {
	query := `
		INSERT INTO forecast_accuracy (
			store_id, product_id, period_start, period_end,
			predicted_qty, actual_qty, forecast_error, abs_error,
			mape, bias, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (store_id, product_id, period_start)
		DO UPDATE SET
			period_end = EXCLUDED.period_end,
			predicted_qty = EXCLUDED.predicted_qty,
			actual_qty = EXCLUDED.actual_qty,
			forecast_error = EXCLUDED.forecast_error,
			abs_error = EXCLUDED.abs_error,
			mape = EXCLUDED.mape,
			bias = EXCLUDED.bias
	`

	_, err := r.db.ExecContext(ctx, query,
		record.StoreID,
		record.ProductID,
		record.PeriodStart,
		record.PeriodEnd,
		record.PredictedQty,
		record.ActualQty,
		record.Error,
		record.AbsError,
		record.MAPE,
		record.Bias,
	)
	if err != nil {
		return fmt.Errorf("failed to save accuracy record: %w", err)
	}

	return nil
}

func (r *accuracyRepository) GetRecords(ctx context.Context, storeID int64, productID string, since time.Time) ([]domain.AccuracyRecord, error) {
	query := `
		SELECT id, store_id, product_id, period_start, period_end,
		       predicted_qty, actual_qty, forecast_error, abs_error,
		       mape, bias, created_at
		FROM forecast_accuracy
		WHERE store_id = $1 AND product_id = $2 AND period_start >= $3
		ORDER BY period_start DESC
	`

	var records []domain.AccuracyRecord
	if err := sqlx.SelectContext(ctx, r.db, &records, query, storeID, productID, since); err != nil {
		return nil, fmt.Errorf("failed to get accuracy records: %w", err)
	}

	return records, nil
}

func (r *accuracyRepository) GetRecentForStore(ctx context.Context, storeID int64, productID string, limit int) ([]domain.AccuracyRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `
		SELECT id, store_id, product_id, period_start, period_end,
		       predicted_qty, actual_qty, forecast_error, abs_error,
		       mape, bias, created_at
		FROM forecast_accuracy
		WHERE store_id = $1 AND ($2 = '' OR product_id = $2)
		ORDER BY period_start DESC, product_id
		LIMIT $3
	`

	var records []domain.AccuracyRecord
	if err := sqlx.SelectContext(ctx, r.db, &records, query, storeID, productID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent accuracy records: %w", err)
	}

	return records, nil
}

func (r *accuracyRepository) GetActiveKeys(ctx context.Context, since time.Time) ([]domain.ProductKey, error) {
	query := `
		SELECT DISTINCT store_id, product_id
		FROM forecast_accuracy
		WHERE period_start >= $1
		ORDER BY store_id, product_id
	`

	var keys []domain.ProductKey
	if err := sqlx.SelectContext(ctx, r.db, &keys, query, since); err != nil {
		return nil, fmt.Errorf("failed to get active accuracy keys: %w", err)
	}

	return keys, nil
}
