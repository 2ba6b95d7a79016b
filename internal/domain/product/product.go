package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	SubCategory string
	Price       decimal.Decimal
	Sizes       []string
	Images      []string
	Bestseller  bool
	CreatedAt   time.Time
}

// HasSize reports whether size is one of the product's size labels. Products
// without sizes accept only the empty size.
func (p Product) HasSize(size string) bool {
	if len(p.Sizes) == 0 {
		return size == ""
	}
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Thumbnail returns the first image URL, or an empty string.
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Repository defines read and admin write operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Upsert(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
