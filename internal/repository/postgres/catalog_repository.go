// internal/repository/postgres/catalog_repository.go
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

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetStores(ctx context.Context) ([]*domain.Store, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM stores
		ORDER BY name
	`

	var stores []*domain.Store
	if err := sqlx.SelectContext(ctx, r.db, &stores, query); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	return stores, nil
}

func (r *catalogRepository) GetStoreProducts(ctx context.Context, storeID int64, supplierNames []string) ([]domain.Product, error) {
	query := `
		SELECT
			p.id,
			p.name,
			p.supplier_name,
			p.unit_cost,
			p.retail_price,
			p.lot_size,
			COALESCE(sl.quantity, 0) AS current_stock
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id AND sl.store_id = $1
		WHERE ($2 = 0 OR p.supplier_name = ANY($3))
		ORDER BY p.id
	`

	var products []domain.Product
	err := sqlx.SelectContext(ctx, r.db, &products, query, storeID, len(supplierNames), pq.Array(supplierNames))
	if err != nil {
		return nil, fmt.Errorf("failed to get store products: %w", err)
	}

	return products, nil
}

func (r *catalogRepository) GetProduct(ctx context.Context, storeID int64, productID string) (*domain.Product, error) {
	query := `
		SELECT
			p.id,
			p.name,
			p.supplier_name,
			p.unit_cost,
			p.retail_price,
			p.lot_size,
			COALESCE(sl.quantity, 0) AS current_stock
		FROM products p
		LEFT JOIN stock_levels sl ON sl.product_id = p.id AND sl.store_id = $1
		WHERE p.id = $2
	`

	var product domain.Product
	err := sqlx.GetContext(ctx, r.db, &product, query, storeID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func (r *catalogRepository) GetSuppliers(ctx context.Context, names []string) ([]domain.Supplier, error) {
	query := `
		SELECT name, lead_time_days, order_interval_days
		FROM suppliers
		WHERE ($1 = 0 OR name = ANY($2))
		ORDER BY name
	`

	var suppliers []domain.Supplier
	if err := sqlx.SelectContext(ctx, r.db, &suppliers, query, len(names), pq.Array(names)); err != nil {
		return nil, fmt.Errorf("failed to get suppliers: %w", err)
	}

	return suppliers, nil
}
