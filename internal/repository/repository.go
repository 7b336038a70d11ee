package repository

import (
	"context"

	"product-catalog/internal/model"
)

// ProductRepository defines the interface for product data access operations.
//
// Lookups return (nil, nil) when no record matches. Implementations must be safe
// for concurrent use and must reject a duplicate title on Save with a
// model.KindConflict error, so uniqueness holds even when two writers race past
// the service's pre-check.
type ProductRepository interface {
	// FindByID retrieves a single product by its ID.
	FindByID(ctx context.Context, id int64) (*model.Product, error)

	// FindByTitle retrieves the product whose title equals title exactly.
	FindByTitle(ctx context.Context, title string) (*model.Product, error)

	// FindByTitleExcludingID retrieves a product with the given title other than id.
	FindByTitleExcludingID(ctx context.Context, title string, id int64) (*model.Product, error)

	// FindAllOrderByUpdatedDesc retrieves every product, most recently updated first.
	FindAllOrderByUpdatedDesc(ctx context.Context) ([]model.Product, error)

	// SearchByTitleOrderByUpdatedDesc retrieves products whose title contains
	// fragment, ignoring case, most recently updated first.
	SearchByTitleOrderByUpdatedDesc(ctx context.Context, fragment string) ([]model.Product, error)

	// Save inserts the product when its ID is zero and updates it otherwise.
	// It returns the stored record with generated fields populated.
	Save(ctx context.Context, product *model.Product) (*model.Product, error)

	// Delete removes the product with the given ID.
	Delete(ctx context.Context, id int64) error
}
