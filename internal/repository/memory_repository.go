package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"product-catalog/internal/model"

	"github.com/rs/zerolog"
)

// memoryProductRepository keeps products in a map guarded by a RWMutex.
// It applies the same title uniqueness rule as the products table.
type memoryProductRepository struct {
	mu       sync.RWMutex
	products map[int64]model.Product
	nextID   int64
	logger   zerolog.Logger
}

// NewMemoryProductRepository creates an in-memory product repository.
func NewMemoryProductRepository(logger zerolog.Logger) ProductRepository {
	return &memoryProductRepository{
		products: make(map[int64]model.Product),
		logger:   logger.With().Str("repository", "product-memory").Logger(),
	}
}

func (r *memoryProductRepository) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (r *memoryProductRepository) FindByTitle(ctx context.Context, title string) (*model.Product, error) {
	return r.FindByTitleExcludingID(ctx, title, 0)
}

func (r *memoryProductRepository) FindByTitleExcludingID(ctx context.Context, title string, id int64) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p := r.titleHolder(title, id); p != nil {
		return clone(*p), nil
	}
	return nil, nil
}

func (r *memoryProductRepository) FindAllOrderByUpdatedDesc(ctx context.Context) ([]model.Product, error) {
	return r.filter(func(model.Product) bool { return true }), nil
}

func (r *memoryProductRepository) SearchByTitleOrderByUpdatedDesc(ctx context.Context, fragment string) ([]model.Product, error) {
	needle := strings.ToLower(fragment)
	return r.filter(func(p model.Product) bool {
		return strings.Contains(strings.ToLower(p.Title), needle)
	}), nil
}

func (r *memoryProductRepository) Save(ctx context.Context, product *model.Product) (*model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID != 0 {
		if _, ok := r.products[product.ID]; !ok {
			return nil, model.NewProductNotFoundError(product.ID)
		}
	}

	if r.titleHolder(product.Title, product.ID) != nil {
		r.logger.Warn().Str("title", product.Title).Msg("title uniqueness violated")
		return nil, model.NewTitleConflictError(product.Title)
	}

	stored := *clone(*product)
	if stored.ID == 0 {
		r.nextID++
		stored.ID = r.nextID
	} else {
		stored.CreatedAt = r.products[stored.ID].CreatedAt
	}
	r.products[stored.ID] = stored

	return clone(stored), nil
}

func (r *memoryProductRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return model.NewProductNotFoundError(id)
	}
	delete(r.products, id)
	return nil
}

// titleHolder returns the product holding title other than excludeID.
// Callers must hold the lock.
func (r *memoryProductRepository) titleHolder(title string, excludeID int64) *model.Product {
	for id, p := range r.products {
		if id != excludeID && p.Title == title {
			return &p
		}
	}
	return nil
}

func (r *memoryProductRepository) filter(keep func(model.Product) bool) []model.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		if keep(p) {
			products = append(products, *clone(p))
		}
	}

	slices.SortFunc(products, func(a, b model.Product) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return products
}

func clone(p model.Product) *model.Product {
	if p.ImagePath != nil {
		path := *p.ImagePath
		p.ImagePath = &path
	}
	return &p
}
