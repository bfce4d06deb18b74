// internal/repository/postgres/sales_repository.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ordercast/ordercast/internal/domain"
)

type salesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) *salesRepository {
	return &salesRepository{db: db}
}

func (r *salesRepository) GetDailySales(ctx context.Context, storeID int64, productID string, from, to time.Time) ([]domain.SalesPoint, error) {
	query := `
		SELECT sale_date, quantity
		FROM daily_sales
		WHERE store_id = $1 AND product_id = $2
		  AND sale_date BETWEEN $3 AND $4
		ORDER BY sale_date
	`

	var points []domain.SalesPoint
	err := sqlx.SelectContext(ctx, r.db, &points, query, storeID, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily sales: %w", err)
	}

	return points, nil
}

func (r *salesRepository) GetDailySalesBulk(ctx context.Context, storeID int64, productIDs []string, from, to time.Time) (map[string][]domain.SalesPoint, error) {
	if len(productIDs) == 0 {
		return map[string][]domain.SalesPoint{}, nil
	}

	query := `
		SELECT product_id, sale_date, quantity
		FROM daily_sales
		WHERE store_id = $1 AND product_id = ANY($2)
		  AND sale_date BETWEEN $3 AND $4
		ORDER BY product_id, sale_date
	`

	rows := []struct {
		ProductID string    `db:"product_id"`
		SaleDate  time.Time `db:"sale_date"`
		Quantity  float64   `db:"quantity"`
	}{}
	err := sqlx.SelectContext(ctx, r.db, &rows, query, storeID, pq.Array(productIDs), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily sales bulk: %w", err)
	}

	out := make(map[string][]domain.SalesPoint, len(productIDs))
	for _, row := range rows {
		out[row.ProductID] = append(out[row.ProductID], domain.SalesPoint{
			Date:     row.SaleDate,
			Quantity: row.Quantity,
		})
	}

	return out, nil
}

func (r *salesRepository) SumSales(ctx context.Context, storeID int64, productID string, from, to time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM daily_sales
		WHERE store_id = $1 AND product_id = $2
		  AND sale_date BETWEEN $3 AND $4
	`

	var total float64
	err := sqlx.GetContext(ctx, r.db, &total, query, storeID, productID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to sum sales: %w", err)
	}

	return total, nil
}
