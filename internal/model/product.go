package model

import "time"

// Product represents a catalogue entry as persisted by the repository.
type Product struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Price       int64     `json:"price" db:"price"`
	ImagePath   *string   `json:"imagePath" db:"image_path"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// HasImage reports whether the product currently references a stored image.
func (p *Product) HasImage() bool {
	return p.ImagePath != nil && *p.ImagePath != ""
}

// ProductForm represents the request payload for registering or updating a product.
type ProductForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

// ProductView is the read-only projection of a Product returned to callers.
type ProductView struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	ImagePath   *string   `json:"imagePath"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewProductView converts a persisted product into its view.
func NewProductView(p *Product) ProductView {
	view := ProductView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.ImagePath != nil {
		path := *p.ImagePath
		view.ImagePath = &path
	}
	return view
}

// Image holds the bytes of a stored product image and its transport content type.
type Image struct {
	Data        []byte
	ContentType string
}
