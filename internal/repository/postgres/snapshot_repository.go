// internal/repository/postgres/snapshot_repository.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ordercast/ordercast/internal/domain"
)

type snapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *snapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) SaveSnapshots(ctx context.Context, snapshots []domain.ForecastSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO forecast_snapshots (
				store_id, product_id, forecast_date, period_start, period_end,
				predicted_qty, algorithm, rank, safety_stock, recommended_order,
				evaluated, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, NOW())
			ON CONFLICT (store_id, product_id, forecast_date)
			DO UPDATE SET
				period_start = EXCLUDED.period_start,
				period_end = EXCLUDED.period_end,
				predicted_qty = EXCLUDED.predicted_qty,
				algorithm = EXCLUDED.algorithm,
				rank = EXCLUDED.rank,
				safety_stock = EXCLUDED.safety_stock,
				recommended_order = EXCLUDED.recommended_order
			WHERE forecast_snapshots.evaluated = FALSE
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range snapshots {
			_, err := stmt.ExecContext(
				ctx,
				s.StoreID,
				s.ProductID,
				s.ForecastDate,
				s.PeriodStart,
				s.PeriodEnd,
				s.PredictedQty,
				s.Algorithm,
				s.Rank,
				s.SafetyStock,
				s.RecommendedOrder,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert snapshot for %s: %w", s.ProductID, err)
			}
		}

		return nil
	})
}

func (r *snapshotRepository) GetUnevaluated(ctx context.Context, before time.Time) ([]domain.ForecastSnapshot, error) {
	query := `
		SELECT id, store_id, product_id, forecast_date, period_start, period_end,
		       predicted_qty, algorithm, rank, safety_stock, recommended_order,
		       evaluated, created_at
		FROM forecast_snapshots
		WHERE evaluated = FALSE AND period_end < $1
		ORDER BY store_id, product_id, period_start
	`

	var snapshots []domain.ForecastSnapshot
	if err := sqlx.SelectContext(ctx, r.db, &snapshots, query, before); err != nil {
		return nil, fmt.Errorf("failed to get unevaluated snapshots: %w", err)
	}

	return snapshots, nil
}

// MarkEvaluated is gated on evaluated = FALSE so a retried batch can
// never flip a snapshot twice.
func (r *snapshotRepository) MarkEvaluated(ctx context.Context, snapshotID int64) error {
	query := `
		UPDATE forecast_snapshots
		SET evaluated = TRUE
		WHERE id = $1 AND evaluated = FALSE
	`

	if _, err := r.db.ExecContext(ctx, query, snapshotID); err != nil {
		return fmt.Errorf("failed to mark snapshot %d evaluated: %w", snapshotID, err)
	}

	return nil
}

func (r *snapshotRepository) GetEvaluatedBefore(ctx context.Context, before time.Time) ([]domain.ForecastSnapshot, error) {
	query := `
		SELECT id, store_id, product_id, forecast_date, period_start, period_end,
		       predicted_qty, algorithm, rank, safety_stock, recommended_order,
		       evaluated, created_at
		FROM forecast_snapshots
		WHERE evaluated = TRUE AND period_end < $1
		ORDER BY store_id, forecast_date, product_id
	`

	var snapshots []domain.ForecastSnapshot
	if err := sqlx.SelectContext(ctx, r.db, &snapshots, query, before); err != nil {
		return nil, fmt.Errorf("failed to get evaluated snapshots: %w", err)
	}

	return snapshots, nil
}

func (r *snapshotRepository) DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM forecast_snapshots
		WHERE evaluated = TRUE AND period_end < $1
	`

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete evaluated snapshots: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots: %w", err)
	}

	return deleted, nil
}
