package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// LocalStore implements Store on a filesystem rooted at the image directory.
type LocalStore struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewLocalStore creates a store rooted at dir on the OS filesystem.
// Paths cannot escape dir.
func NewLocalStore(dir string, logger zerolog.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve image directory %s: %w", dir, err)
	}

	store := NewLocalStoreFs(afero.NewBasePathFs(afero.NewOsFs(), abs), logger)
	store.logger.Info().Str("dir", abs).Msg("local image store initialised")

	return store, nil
}

// NewLocalStoreFs creates a store on an arbitrary afero filesystem.
func NewLocalStoreFs(fsys afero.Fs, logger zerolog.Logger) *LocalStore {
	return &LocalStore{
		fs:     fsys,
		logger: logger.With().Str("component", "local-image-store").Logger(),
	}
}

// Save writes data to a temporary file and renames it into place, so readers
// never observe a partially written image.
func (s *LocalStore) Save(ctx context.Context, productID int64, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := DirName(productID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error().Err(err).Int64("product_id", productID).Msg("failed to create image directory")
		return "", fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}

	name := uuid.NewString()
	final := filepath.Join(dir, name+ext)
	tmp := filepath.Join(dir, "."+name+ext+".tmp")

	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		s.logger.Error().Err(err).Str("file", tmp).Msg("failed to write image")
		return "", fmt.Errorf("failed to write image %s: %w", final, err)
	}

	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		s.logger.Error().Err(err).Str("file", final).Msg("failed to move image into place")
		return "", fmt.Errorf("failed to move image %s into place: %w", final, err)
	}

	s.logger.Debug().
		Int64("product_id", productID).
		Str("file", final).
		Int("bytes", len(data)).
		Msg("image stored")

	return name, nil
}

// Read returns the bytes of fileName inside the product's directory.
func (s *LocalStore) Read(ctx context.Context, productID int64, fileName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidFileName(fileName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}

	path := filepath.Join(DirName(productID), fileName)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}

	return data, nil
}

// DeleteAll removes the product's directory. A missing directory is ignored;
// every other failure is returned.
func (s *LocalStore) DeleteAll(ctx context.Context, productID int64) error {
	dir := DirName(productID)

	if err := s.fs.RemoveAll(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		s.logger.Error().Err(err).Int64("product_id", productID).Msg("failed to delete image directory")
		return fmt.Errorf("failed to delete image directory %s: %w", dir, err)
	}

	s.logger.Debug().Int64("product_id", productID).Msg("image directory deleted")
	return nil
}
