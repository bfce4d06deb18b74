// internal/repository/postgres/params_repository.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ordercast/ordercast/internal/domain"
)

type paramsRepository struct {
	db *DB
}

func NewParamsRepository(db *DB) *paramsRepository {
	return &paramsRepository{db: db}
}

func (r *paramsRepository) Get(ctx context.Context, storeID int64, productID string) (*domain.ForecastParams, error) {
	query := `
		SELECT id, store_id, product_id, bias_correction, safety_multiplier,
		       best_lookback_days, dow_reliability, weekly_mape, weekly_bias,
		       learning_cycles, updated_at
		FROM product_forecast_params
		WHERE store_id = $1 AND product_id = $2
	`

	var params domain.ForecastParams
	err := sqlx.GetContext(ctx, r.db, &params, query, storeID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast params: %w", err)
	}

	return &params, nil
}

func (r *paramsRepository) GetBulk(ctx context.Context, storeID int64, productIDs []string) (map[string]*domain.ForecastParams, error) {
	if len(productIDs) == 0 {
		return map[string]*domain.ForecastParams{}, nil
	}

	query := `
		SELECT id, store_id, product_id, bias_correction, safety_multiplier,
		       best_lookback_days, dow_reliability, weekly_mape, weekly_bias,
		       learning_cycles, updated_at
		FROM product_forecast_params
		WHERE store_id = $1 AND product_id = ANY($2)
	`

	var rows []domain.ForecastParams
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, storeID, pq.Array(productIDs)); err != nil {
		return nil, fmt.Errorf("failed to get forecast params bulk: %w", err)
	}

	out := make(map[string]*domain.ForecastParams, len(rows))
	for i := range rows {
		out[rows[i].ProductID] = &rows[i]
	}

	return out, nil
}

func (r *paramsRepository) GetForStore(ctx context.Context, storeID int64) ([]domain.ForecastParams, error) {
	query := `
		SELECT id, store_id, product_id, bias_correction, safety_multiplier,
		       best_lookback_days, dow_reliability, weekly_mape, weekly_bias,
		       learning_cycles, updated_at
		FROM product_forecast_params
		WHERE store_id = $1
		ORDER BY product_id
	`

	var rows []domain.ForecastParams
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, storeID); err != nil {
		return nil, fmt.Errorf("failed to list forecast params: %w", err)
	}

	return rows, nil
}

func (r *paramsRepository) Upsert(ctx context.Context, params *domain.ForecastParams) error {
	query := `
		INSERT INTO product_forecast_params (
			store_id, product_id, bias_correction, safety_multiplier,
			best_lookback_days, dow_reliability, weekly_mape, weekly_bias,
			learning_cycles, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (store_id, product_id)
		DO UPDATE SET
			bias_correction = EXCLUDED.bias_correction,
			safety_multiplier = EXCLUDED.safety_multiplier,
			best_lookback_days = EXCLUDED.best_lookback_days,
			dow_reliability = EXCLUDED.dow_reliability,
			weekly_mape = EXCLUDED.weekly_mape,
			weekly_bias = EXCLUDED.weekly_bias,
			learning_cycles = EXCLUDED.learning_cycles,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		params.StoreID,
		params.ProductID,
		params.BiasCorrection,
		params.SafetyMultiplier,
		params.BestLookbackDays,
		params.DowReliability,
		params.WeeklyMAPE,
		params.WeeklyBias,
		params.LearningCycles,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert forecast params: %w", err)
	}

	return nil
}
