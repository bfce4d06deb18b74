// internal/repository/catalog_repository.go
package repository

import (
	"context"

	"github.com/ordercast/ordercast/internal/domain"
)

type CatalogRepository interface {
	GetStores(ctx context.Context) ([]*domain.Store, error)
	// GetStoreProducts returns products sold in a store joined with the
	// current stock level, optionally filtered by supplier names.
	GetStoreProducts(ctx context.Context, storeID int64, supplierNames []string) ([]domain.Product, error)
	GetProduct(ctx context.Context, storeID int64, productID string) (*domain.Product, error)
	GetSuppliers(ctx context.Context, names []string) ([]domain.Supplier, error)
}
