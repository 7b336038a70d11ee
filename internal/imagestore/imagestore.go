// Package imagestore persists product images, one directory per product.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidFileName is returned when a file name is not a bare name inside
// a product directory.
var ErrInvalidFileName = errors.New("invalid image file name")

// Store persists product image bytes keyed by product id.
type Store interface {
	// Save writes data under the product's directory and returns the generated
	// unique name. The file itself is stored as name+ext.
	Save(ctx context.Context, productID int64, data []byte, ext string) (string, error)

	// Read returns the bytes of fileName inside the product's directory.
	Read(ctx context.Context, productID int64, fileName string) ([]byte, error)

	// DeleteAll removes the product's directory and everything in it.
	// A missing directory is not an error.
	DeleteAll(ctx context.Context, productID int64) error
}

// DirName returns the directory (or key segment) holding a product's images.
func DirName(productID int64) string {
	return fmt.Sprintf("image%d", productID)
}

// ValidFileName reports whether name is a plain file name with no path components.
func ValidFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

// ClassifyExtension maps an image extension to the content type served for it.
// Unrecognised extensions fall back to image/jpeg.
func ClassifyExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "gif":
		return "image/gif"
	case "png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
