// Package wishlist keeps per-user lists of saved products.
package wishlist

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/mishramart/internal/domain/product"
)

// ErrInvalidProductID is returned for a blank product identifier.
var ErrInvalidProductID = errors.New("product id is required")

// Item is one saved product. ProductID is the only product reference; the
// product itself is resolved through the catalog.
type Item struct {
	ProductID string
	AddedAt   time.Time
	Product   *product.Product
}

// Repository persists wishlist items.
type Repository interface {
	List(ctx context.Context, userID string) ([]Item, error)
	// Add inserts the item, doing nothing when it already exists.
	Add(ctx context.Context, userID, productID string, at time.Time) error
	Remove(ctx context.Context, userID, productID string) (bool, error)
}

// Service implements the wishlist operations.
type Service struct {
	items    Repository
	products product.Repository
	now      func() time.Time
}

// NewService creates a wishlist Service.
func NewService(items Repository, products product.Repository) *Service {
	return &Service{items: items, products: products, now: time.Now}
}

// List returns the user's wishlist with products resolved. Items whose
// product has since been removed from the catalog are omitted.
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	items, err := s.items.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list wishlist")
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := items[:0]
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		it.Product = &p
		out = append(out, it)
	}
	return out, nil
}

// Add saves productID for the user. Adding an already saved product is a
// no-op. It returns product.ErrNotFound for unknown products.
func (s *Service) Add(ctx context.Context, userID, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrInvalidProductID
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}
	if err := s.items.Add(ctx, userID, productID, s.now()); err != nil {
		return errors.Wrap(err, "add wishlist item")
	}
	return nil
}

// Remove deletes productID from the user's wishlist and reports whether it
// was present.
func (s *Service) Remove(ctx context.Context, userID, productID string) (bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, ErrInvalidProductID
	}
	removed, err := s.items.Remove(ctx, userID, productID)
	if err != nil {
		return false, errors.Wrap(err, "remove wishlist item")
	}
	return removed, nil
}
