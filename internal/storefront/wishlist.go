package storefront

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/mishramart/internal/domain/product"
)

// WishlistAPI is the server side of the wishlist. *Client implements it.
type WishlistAPI interface {
	Wishlist(ctx context.Context) ([]WishlistEntry, error)
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
}

// Wishlist mirrors the signed-in shopper's server wishlist. Entries are keyed
// by product id only.
type Wishlist struct {
	api      WishlistAPI
	notifier *Notifier

	mu      sync.Mutex
	entries []WishlistEntry
}

// NewWishlist returns an empty Wishlist.
func NewWishlist(api WishlistAPI, notifier *Notifier) *Wishlist {
	return &Wishlist{api: api, notifier: notifier}
}

// Load replaces the local entries with the server's.
func (w *Wishlist) Load(ctx context.Context) error {
	entries, err := w.api.Wishlist(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.entries = entries
	w.mu.Unlock()
	return nil
}

// Reset forgets the entries, e.g. on logout.
func (w *Wishlist) Reset() {
	w.mu.Lock()
	w.entries = nil
	w.mu.Unlock()
}

// Add saves p on the server and locally.
func (w *Wishlist) Add(ctx context.Context, p product.Product) error {
	if err := w.api.AddToWishlist(ctx, p.ID); err != nil {
		w.notify(KindError, UserMessage(err))
		return err
	}
	w.mu.Lock()
	if w.index(p.ID) < 0 {
		w.entries = append(w.entries, WishlistEntry{ProductID: p.ID, Product: &p})
	}
	w.mu.Unlock()
	w.notify(KindSuccess, "Added to wishlist")
	return nil
}

// Remove drops productID on the server and locally.
func (w *Wishlist) Remove(ctx context.Context, productID string) error {
	if err := w.api.RemoveFromWishlist(ctx, productID); err != nil {
		w.notify(KindError, UserMessage(err))
		return err
	}
	w.mu.Lock()
	if i := w.index(productID); i >= 0 {
		w.entries = slices.Delete(w.entries, i, i+1)
	}
	w.mu.Unlock()
	w.notify(KindInfo, "Removed from wishlist")
	return nil
}

// Toggle adds p when it is not saved and removes it otherwise. It reports
// whether p is saved afterwards.
func (w *Wishlist) Toggle(ctx context.Context, p product.Product) (bool, error) {
	if w.Contains(p.ID) {
		return false, w.Remove(ctx, p.ID)
	}
	return true, w.Add(ctx, p)
}

// Contains reports whether productID is saved.
func (w *Wishlist) Contains(productID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index(productID) >= 0
}

// Entries returns a copy of the saved entries.
func (w *Wishlist) Entries() []WishlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.entries)
}

func (w *Wishlist) index(productID string) int {
	return slices.IndexFunc(w.entries, func(e WishlistEntry) bool { return e.ProductID == productID })
}

func (w *Wishlist) notify(kind Kind, msg string) {
	if w.notifier != nil {
		w.notifier.Show(kind, msg)
	}
}
