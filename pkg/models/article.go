package models

import (
	"time"
)

// Article is a catalog entry. ImageFile and ModelFile hold store-relative filenames, not URLs.
type Article struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	ImageFile   string    `json:"imageFile,omitempty"`
	ModelFile   string    `json:"modelFile,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewArticle is the input for creating an article. Price is in minor units and may be
// fractional. It is a pointer so that a missing price is not taken for zero.
type NewArticle struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	ImageFile   string   `json:"image"`
	ModelFile   string   `json:"glb"`
}
