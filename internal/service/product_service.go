package service

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"product-catalog/internal/imagestore"
	"product-catalog/internal/model"
	"product-catalog/internal/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// ImageSettings is the upload policy applied by AttachImage.
type ImageSettings struct {
	// AllowedExtensions are lower-case extensions without the leading dot.
	AllowedExtensions []string
	// MaxUploadSize is the largest accepted image in bytes.
	MaxUploadSize int64
}

// Option customises a product service.
type Option func(*productService)

// WithClock replaces the time source used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *productService) {
		s.now = now
	}
}

// productService implements ProductService.
type productService struct {
	productRepo repository.ProductRepository
	images      imagestore.Store
	settings    ImageSettings
	now         func() time.Time
	logger      zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(
	productRepo repository.ProductRepository,
	images imagestore.Store,
	settings ImageSettings,
	logger zerolog.Logger,
	opts ...Option,
) ProductService {
	s := &productService{
		productRepo: productRepo,
		images:      images,
		settings: ImageSettings{
			AllowedExtensions: slices.Clone(settings.AllowedExtensions),
			MaxUploadSize:     settings.MaxUploadSize,
		},
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("service", "product").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a product after checking its title is free.
func (s *productService) Register(ctx context.Context, form model.ProductForm) (*model.Product, error) {
	if err := validateForm(form); err != nil {
		s.logger.Warn().Err(err).Msg("invalid product form")
		return nil, err
	}

	existing, err := s.productRepo.FindByTitle(ctx, form.Title)
	if err != nil {
		s.logger.Error().Err(err).Str("title", form.Title).Msg("failed to check title uniqueness")
		return nil, fmt.Errorf("failed to check title: %w", err)
	}
	if existing != nil {
		s.logger.Warn().Str("title", form.Title).Msg("product title already taken")
		return nil, model.NewTitleConflictError(form.Title)
	}

	now := s.now()
	saved, err := s.productRepo.Save(ctx, &model.Product{
		Title:       form.Title,
		Description: form.Description,
		Price:       form.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("title", form.Title).Msg("failed to register product")
		return nil, err
	}

	s.logger.Info().
		Int64("product_id", saved.ID).
		Str("title", saved.Title).
		Msg("product registered")

	return saved, nil
}

// Find returns the view of a single product.
func (s *productService) Find(ctx context.Context, id int64) (*model.ProductView, error) {
	product, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	view := model.NewProductView(product)
	return &view, nil
}

// ListAll returns every product, most recently updated first.
func (s *productService) ListAll(ctx context.Context) ([]model.ProductView, error) {
	products, err := s.productRepo.FindAllOrderByUpdatedDesc(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list products")
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	s.logger.Debug().Int("count", len(products)).Msg("listed products")
	return toViews(products), nil
}

// Search returns products whose title contains fragment, ignoring case.
func (s *productService) Search(ctx context.Context, fragment string) ([]model.ProductView, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return s.ListAll(ctx)
	}

	products, err := s.productRepo.SearchByTitleOrderByUpdatedDesc(ctx, fragment)
	if err != nil {
		s.logger.Error().Err(err).Str("fragment", fragment).Msg("failed to search products")
		return nil, fmt.Errorf("failed to search products: %w", err)
	}

	s.logger.Debug().
		Str("fragment", fragment).
		Int("count", len(products)).
		Msg("searched products")

	return toViews(products), nil
}

// Update overwrites title, description and price of an existing product.
func (s *productService) Update(ctx context.Context, id int64, form model.ProductForm) (*model.Product, error) {
	if err := validateForm(form); err != nil {
		s.logger.Warn().Err(err).Int64("product_id", id).Msg("invalid product form")
		return nil, err
	}

	product, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	holder, err := s.productRepo.FindByTitleExcludingID(ctx, form.Title, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to check title uniqueness")
		return nil, fmt.Errorf("failed to check title: %w", err)
	}
	if holder != nil {
		s.logger.Warn().
			Int64("product_id", id).
			Int64("holder_id", holder.ID).
			Str("title", form.Title).
			Msg("product title already taken")
		return nil, model.NewTitleConflictError(form.Title)
	}

	product.Title = form.Title
	product.Description = form.Description
	product.Price = form.Price
	product.UpdatedAt = s.now()

	saved, err := s.productRepo.Save(ctx, product)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to update product")
		return nil, err
	}

	s.logger.Info().Int64("product_id", id).Msg("product updated")
	return saved, nil
}

// Delete removes the row first and then the image directory. A failure to
// remove the directory is logged only; the row it belonged to is gone.
func (s *productService) Delete(ctx context.Context, id int64) error {
	if _, err := s.mustFind(ctx, id); err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to delete product")
		return err
	}

	if err := s.images.DeleteAll(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to delete image directory of deleted product")
	}

	s.logger.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}

// AttachImage stores data as the product's image, replacing any previous one.
func (s *productService) AttachImage(ctx context.Context, id int64, data []byte, originalFileName string) (*model.ProductView, error) {
	if len(data) == 0 {
		return nil, model.NewValidationError("image file is empty")
	}
	if int64(len(data)) > s.settings.MaxUploadSize {
		s.logger.Warn().
			Int64("product_id", id).
			Int("bytes", len(data)).
			Int64("max_bytes", s.settings.MaxUploadSize).
			Msg("image exceeds upload limit")
		return nil, model.NewValidationError(
			fmt.Sprintf("image is %d bytes, the limit is %d bytes", len(data), s.settings.MaxUploadSize))
	}

	ext := strings.ToLower(filepath.Ext(originalFileName))
	if !s.extensionAllowed(ext) {
		s.logger.Warn().Int64("product_id", id).Str("extension", ext).Msg("image extension not allowed")
		return nil, model.NewUnsupportedMediaTypeError(ext, s.settings.AllowedExtensions)
	}

	product, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}

	replacing := product.HasImage()
	if replacing {
		if err := s.images.DeleteAll(ctx, id); err != nil {
			s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to remove previous image")
			return nil, model.NewImageWriteError(id, err)
		}
	}

	name, err := s.images.Save(ctx, id, data, ext)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to store image")
		return nil, model.NewImageWriteError(id, err)
	}

	imagePath := name + ext
	product.ImagePath = &imagePath
	product.UpdatedAt = s.now()

	saved, err := s.productRepo.Save(ctx, product)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to record image path, removing stored image")
		if cleanupErr := s.images.DeleteAll(ctx, id); cleanupErr != nil {
			s.logger.Error().Err(cleanupErr).Int64("product_id", id).Msg("failed to remove orphaned image")
		}
		if replacing {
			s.clearImagePath(ctx, product)
		}
		return nil, err
	}

	s.logger.Info().
		Int64("product_id", id).
		Str("image_path", imagePath).
		Int("bytes", len(data)).
		Msg("image attached")

	view := model.NewProductView(saved)
	return &view, nil
}

// FetchImage returns the bytes and content type of the product's image.
func (s *productService) FetchImage(ctx context.Context, id int64, imagePath string) (*model.Image, error) {
	product, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.HasImage() {
		s.logger.Debug().Int64("product_id", id).Msg("product has no image")
		return nil, model.NewImageNotFoundError(id)
	}
	imagePath = strings.TrimSpace(imagePath)
	if !imagestore.ValidFileName(imagePath) {
		s.logger.Warn().Int64("product_id", id).Str("image_path", imagePath).Msg("rejected image path")
		return nil, model.NewImageNotFoundError(id)
	}
	if imagePath != *product.ImagePath {
		s.logger.Debug().Int64("product_id", id).Str("image_path", imagePath).Msg("image path is not the current image")
		return nil, model.NewImageNotFoundError(id)
	}

	data, err := s.images.Read(ctx, id, imagePath)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("product_id", id).
			Str("image_path", imagePath).
			Msg("failed to read image")
		return nil, model.NewImageReadError(id, err)
	}

	contentType := imagestore.ClassifyExtension(filepath.Ext(imagePath))
	if sniffed := mimetype.Detect(data).String(); strings.HasPrefix(sniffed, "image/") {
		contentType = sniffed
	}

	s.logger.Debug().
		Int64("product_id", id).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("image fetched")

	return &model.Image{Data: data, ContentType: contentType}, nil
}

// clearImagePath records that the product no longer has an image after its
// previous directory was removed and the new path could not be saved.
func (s *productService) clearImagePath(ctx context.Context, product *model.Product) {
	product.ImagePath = nil
	product.UpdatedAt = s.now()
	if _, err := s.productRepo.Save(ctx, product); err != nil {
		s.logger.Error().Err(err).Int64("product_id", product.ID).Msg("failed to clear image path of product")
	}
}

// mustFind loads a product or fails with NotFound.
func (s *productService) mustFind(ctx context.Context, id int64) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		s.logger.Warn().Int64("product_id", id).Msg("product not found")
		return nil, model.NewProductNotFoundError(id)
	}
	return product, nil
}

func (s *productService) extensionAllowed(ext string) bool {
	name := strings.TrimPrefix(ext, ".")
	if name == "" {
		return false
	}
	return slices.Contains(s.settings.AllowedExtensions, name)
}

func validateForm(form model.ProductForm) error {
	if strings.TrimSpace(form.Title) == "" {
		return model.NewValidationError("title must not be blank")
	}
	if form.Price < 0 {
		return model.NewValidationError("price must not be negative")
	}
	return nil
}

func toViews(products []model.Product) []model.ProductView {
	views := make([]model.ProductView, 0, len(products))
	for i := range products {
		views = append(views, model.NewProductView(&products[i]))
	}
	return views
}
