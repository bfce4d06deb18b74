// internal/repository/sales_repository.go
package repository

import (
	"context"
	"time"

	"github.com/ordercast/ordercast/internal/domain"
)

type SalesRepository interface {
	GetDailySales(ctx context.Context, storeID int64, productID string, from, to time.Time) ([]domain.SalesPoint, error)
	// GetDailySalesBulk fetches the series for many products in one
	// round trip, keyed by product id. Products without sales in the
	// range are absent from the map.
	GetDailySalesBulk(ctx context.Context, storeID int64, productIDs []string, from, to time.Time) (map[string][]domain.SalesPoint, error)
	SumSales(ctx context.Context, storeID int64, productID string, from, to time.Time) (float64, error)
}
