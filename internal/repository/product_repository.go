package repository

import (
	"context"
	"errors"
	"fmt"

	"product-catalog/internal/model"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const productColumns = `id, title, description, price, image_path, created_at, updated_at`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// FindByID retrieves a single product by its ID.
func (r *productRepository) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

// FindByTitle retrieves the product whose title equals title exactly.
func (r *productRepository) FindByTitle(ctx context.Context, title string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE title = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, title))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("title", title).Msg("failed to query product by title")
		return nil, fmt.Errorf("failed to query product by title: %w", err)
	}

	return p, nil
}

// FindByTitleExcludingID retrieves a product with the given title other than id.
func (r *productRepository) FindByTitleExcludingID(ctx context.Context, title string, id int64) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE title = $1 AND id <> $2`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, title, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).
			Str("title", title).
			Int64("excluded_id", id).
			Msg("failed to query product by title")
		return nil, fmt.Errorf("failed to query product by title: %w", err)
	}

	return p, nil
}

// FindAllOrderByUpdatedDesc retrieves every product, most recently updated first.
func (r *productRepository) FindAllOrderByUpdatedDesc(ctx context.Context) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	return r.collectProducts(rows)
}

// SearchByTitleOrderByUpdatedDesc retrieves products whose title contains fragment,
// ignoring case. strpos matches the fragment literally, so % and _ need no escaping.
func (r *productRepository) SearchByTitleOrderByUpdatedDesc(ctx context.Context, fragment string) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE strpos(lower(title), lower($1)) > 0
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, fragment)
	if err != nil {
		r.logger.Error().Err(err).Str("fragment", fragment).Msg("failed to search products")
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	return r.collectProducts(rows)
}

// Save inserts the product when its ID is zero and updates it otherwise.
func (r *productRepository) Save(ctx context.Context, product *model.Product) (*model.Product, error) {
	if product.ID == 0 {
		return r.insert(ctx, product)
	}
	return r.update(ctx, product)
}

func (r *productRepository) insert(ctx context.Context, product *model.Product) (*model.Product, error) {
	query := `
		INSERT INTO products (title, description, price, image_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + productColumns

	saved, err := scanProduct(r.pool.QueryRow(ctx, query,
		product.Title,
		product.Description,
		product.Price,
		product.ImagePath,
		product.CreatedAt,
		product.UpdatedAt,
	))
	if err != nil {
		return nil, r.translateWriteError(err, product)
	}

	r.logger.Debug().Int64("product_id", saved.ID).Str("title", saved.Title).Msg("product inserted")
	return saved, nil
}

func (r *productRepository) update(ctx context.Context, product *model.Product) (*model.Product, error) {
	query := `
		UPDATE products
		SET title = $2, description = $3, price = $4, image_path = $5, updated_at = $6
		WHERE id = $1
		RETURNING ` + productColumns

	saved, err := scanProduct(r.pool.QueryRow(ctx, query,
		product.ID,
		product.Title,
		product.Description,
		product.Price,
		product.ImagePath,
		product.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn().Int64("product_id", product.ID).Msg("product vanished before update")
			return nil, model.NewProductNotFoundError(product.ID)
		}
		return nil, r.translateWriteError(err, product)
	}

	r.logger.Debug().Int64("product_id", saved.ID).Msg("product updated")
	return saved, nil
}

// Delete removes the product with the given ID.
func (r *productRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to delete product")
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.NewProductNotFoundError(id)
	}

	return nil
}

// translateWriteError maps a unique violation on title to a conflict.
func (r *productRepository) translateWriteError(err error, product *model.Product) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		r.logger.Warn().
			Str("title", product.Title).
			Str("constraint", pgErr.ConstraintName).
			Msg("title uniqueness violated")
		return model.NewTitleConflictError(product.Title)
	}

	r.logger.Error().Err(err).Int64("product_id", product.ID).Msg("failed to save product")
	return fmt.Errorf("failed to save product: %w", err)
}

func (r *productRepository) collectProducts(rows pgx.Rows) ([]model.Product, error) {
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
