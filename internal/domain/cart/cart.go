// Package cart holds the Cart Ledger: the list of lines a shopper intends to
// purchase, keyed by (product, size), and the storage slot it persists to.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	guestSlot      = "mishramart_guest_cart"
	userSlotPrefix = "mishramart_cart_"
)

// ErrSlotNotFound is returned by a Store when nothing is persisted under a slot.
var ErrSlotNotFound = errors.New("cart slot not found")

// Line is one (product, size) entry of the ledger. Price, OriginalPrice and
// DiscountPercent are snapshots taken when the line was first added.
type Line struct {
	ProductID       string          `json:"productId"`
	Name            string          `json:"name"`
	Image           string          `json:"image,omitempty"`
	Size            *string         `json:"size"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	OriginalPrice   decimal.Decimal `json:"originalPrice"`
	DiscountPercent int             `json:"discountPercent"`
}

// SizeLabel returns the chosen size, or an empty string for unsized lines.
func (l Line) SizeLabel() string {
	if l.Size == nil {
		return ""
	}
	return *l.Size
}

// Amount returns Price × Quantity.
func (l Line) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Identity selects whose cart is active: a guest or an authenticated user.
type Identity struct {
	UserID string
}

// Guest is the identity of a shopper who has not signed in.
var Guest = Identity{}

// User returns the identity of the authenticated user id.
func User(id string) Identity {
	return Identity{UserID: id}
}

// IsGuest reports whether the identity is the guest identity.
func (i Identity) IsGuest() bool {
	return i.UserID == ""
}

// Slot returns the storage key the identity's cart is persisted under.
func (i Identity) Slot() string {
	if i.IsGuest() {
		return guestSlot
	}
	return userSlotPrefix + i.UserID
}

func (i Identity) String() string {
	if i.IsGuest() {
		return "guest"
	}
	return i.UserID
}

// Store persists full ledgers under storage slots. Save overwrites; there is
// no merge and no locking, the last write wins.
type Store interface {
	Load(ctx context.Context, slot string) ([]Line, error)
	Save(ctx context.Context, slot string, lines []Line) error
}
