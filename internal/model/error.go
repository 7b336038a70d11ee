package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Kind classifies a domain failure independently of any transport.
type Kind string

// Failure kinds raised by the product service and its collaborators.
// The values double as the error codes returned by the API.
const (
	KindValidation           Kind = "VALIDATION_FAILED"
	KindConflict             Kind = "PRODUCT_ALREADY_EXISTS"
	KindNotFound             Kind = "NOT_FOUND"
	KindUnsupportedMediaType Kind = "UNSUPPORTED_MEDIA_TYPE"
	KindImageWrite           Kind = "IMAGE_WRITE_FAILED"
	KindImageRead            Kind = "IMAGE_READ_FAILED"
	KindUnexpected           Kind = "INTERNAL_ERROR"
)

// Transport-only error codes for API responses.
const (
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeInvalidID    = "INVALID_ID"
	ErrCodeUnauthorised = "UNAUTHORIZED"
)

// DomainError is a failure of a known kind carrying a user-facing message.
type DomainError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same kind, so detailed errors compare
// equal to the sentinels below under errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewDomainError creates a new domain error
func NewDomainError(kind Kind, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: message,
	}
}

// Sentinels for errors.Is checks, one per kind.
var (
	ErrValidation           = NewDomainError(KindValidation, "invalid input")
	ErrConflict             = NewDomainError(KindConflict, "product already exists")
	ErrNotFound             = NewDomainError(KindNotFound, "not found")
	ErrUnsupportedMediaType = NewDomainError(KindUnsupportedMediaType, "unsupported media type")
	ErrImageWrite           = NewDomainError(KindImageWrite, "failed to store product image")
	ErrImageRead            = NewDomainError(KindImageRead, "failed to read product image")
)

// NewValidationError reports malformed or missing input.
func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, message)
}

// NewTitleConflictError reports a title already held by another product.
func NewTitleConflictError(title string) *DomainError {
	return NewDomainError(KindConflict, fmt.Sprintf("a product titled %q already exists", title))
}

// NewProductNotFoundError reports a product id with no stored record.
func NewProductNotFoundError(id int64) *DomainError {
	return NewDomainError(KindNotFound, fmt.Sprintf("product %d not found", id))
}

// NewImageNotFoundError reports a product without a stored image.
func NewImageNotFoundError(id int64) *DomainError {
	return NewDomainError(KindNotFound, fmt.Sprintf("product %d has no image", id))
}

// NewUnsupportedMediaTypeError reports an image extension outside the allow-list.
func NewUnsupportedMediaTypeError(ext string, allowed []string) *DomainError {
	return NewDomainError(KindUnsupportedMediaType,
		fmt.Sprintf("extension %q is not allowed (allowed: %v)", ext, allowed))
}

// NewImageWriteError wraps an I/O failure while persisting or removing image bytes.
func NewImageWriteError(id int64, err error) *DomainError {
	return &DomainError{
		Kind:    KindImageWrite,
		Message: fmt.Sprintf("failed to store image for product %d", id),
		Err:     err,
	}
}

// NewImageReadError wraps an I/O failure while retrieving image bytes.
func NewImageReadError(id int64, err error) *DomainError {
	return &DomainError{
		Kind:    KindImageRead,
		Message: fmt.Sprintf("failed to read image for product %d", id),
		Err:     err,
	}
}

// KindOf returns the kind of err, or KindUnexpected for anything that is not a
// DomainError.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}
