package service

import (
	"context"

	"product-catalog/internal/model"
)

// ProductService defines operations on the product aggregate: the product
// record and its at-most-one stored image.
type ProductService interface {
	// Register creates a product after checking its title is free.
	Register(ctx context.Context, form model.ProductForm) (*model.Product, error)

	// Find returns the view of a single product.
	Find(ctx context.Context, id int64) (*model.ProductView, error)

	// ListAll returns every product, most recently updated first.
	ListAll(ctx context.Context) ([]model.ProductView, error)

	// Search returns products whose title contains fragment, ignoring case.
	// A blank fragment behaves as ListAll.
	Search(ctx context.Context, fragment string) ([]model.ProductView, error)

	// Update overwrites title, description and price of an existing product.
	Update(ctx context.Context, id int64, form model.ProductForm) (*model.Product, error)

	// Delete removes the product and its image directory.
	Delete(ctx context.Context, id int64) error

	// AttachImage stores data as the product's image, replacing any previous one.
	AttachImage(ctx context.Context, id int64, data []byte, originalFileName string) (*model.ProductView, error)

	// FetchImage returns the bytes and content type of the product's image.
	FetchImage(ctx context.Context, id int64, imagePath string) (*model.Image, error)
}
