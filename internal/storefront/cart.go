package storefront

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/cart"
)

// Cart is the session's Cart Ledger bound to its storage slot. Every
// mutation is applied in memory first and then the whole ledger is written
// to the slot of the current identity; a failed write is returned but the
// in-memory change stays.
type Cart struct {
	store    cart.Store
	notifier *Notifier
	lg       *zap.Logger

	mu       sync.Mutex
	identity cart.Identity
	ledger   *cart.Ledger
	rev      uint64
}

// NewCart returns an empty guest cart. Call SwitchIdentity to load a slot.
func NewCart(store cart.Store, notifier *Notifier, lg *zap.Logger) *Cart {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Cart{
		store:    store,
		notifier: notifier,
		lg:       lg,
		identity: cart.Guest,
		ledger:   cart.NewLedger(nil),
	}
}

// SwitchIdentity replaces the ledger with the one stored in id's slot. The
// previous identity's lines are not carried over. When the slot cannot be
// read the cart starts empty and the error is returned.
func (c *Cart) SwitchIdentity(ctx context.Context, id cart.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.identity = id
	c.ledger = cart.NewLedger(nil)
	c.rev++

	lines, err := c.store.Load(ctx, id.Slot())
	switch {
	case errors.Is(err, cart.ErrSlotNotFound):
		return nil
	case err != nil:
		return errors.Wrapf(err, "load cart for %s", id)
	}
	c.ledger = cart.NewLedger(lines)
	c.lg.Debug("Cart loaded",
		zap.Stringer("identity", id),
		zap.Int("lines", c.ledger.Len()),
	)
	return nil
}

// Add puts quantity units of v in the chosen size into the cart, merging
// with an existing (product, size) line. The price snapshot is taken now.
func (c *Cart) Add(ctx context.Context, v ProductView, quantity int, size string) error {
	line := cart.Line{
		ProductID:       v.ID,
		Name:            v.Name,
		Image:           v.Thumbnail(),
		Quantity:        quantity,
		Price:           v.Price,
		OriginalPrice:   v.OriginalPrice,
		DiscountPercent: v.DiscountPercent,
	}
	if size != "" {
		line.Size = &size
	}
	return c.AddLine(ctx, line)
}

// AddLine merges a prepared line into the cart.
func (c *Cart) AddLine(ctx context.Context, line cart.Line) error {
	c.mu.Lock()
	c.ledger.Add(line)
	c.rev++
	err := c.persist(ctx)
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.Show(KindSuccess, "Item added to cart")
	}
	return err
}

// Remove deletes every line of productID, whatever its size.
func (c *Cart) Remove(ctx context.Context, productID string) error {
	return c.mutate(ctx, func(l *cart.Ledger) bool { return l.Remove(productID) })
}

// RemoveLine deletes only the (productID, size) line.
func (c *Cart) RemoveLine(ctx context.Context, productID, size string) error {
	return c.mutate(ctx, func(l *cart.Ledger) bool { return l.RemoveLine(productID, size) })
}

// UpdateQuantity sets the quantity of productID; below 1 removes it.
func (c *Cart) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	return c.mutate(ctx, func(l *cart.Ledger) bool { return l.UpdateQuantity(productID, quantity) })
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func(l *cart.Ledger) bool {
		if l.Len() == 0 {
			return false
		}
		l.Clear()
		return true
	})
}

func (c *Cart) mutate(ctx context.Context, fn func(l *cart.Ledger) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !fn(c.ledger) {
		return nil
	}
	c.rev++
	return c.persist(ctx)
}

// persist writes the ledger to the current slot. c.mu must be held.
func (c *Cart) persist(ctx context.Context) error {
	if err := c.store.Save(ctx, c.identity.Slot(), c.ledger.Lines()); err != nil {
		c.lg.Warn("Persist cart", zap.Stringer("identity", c.identity), zap.Error(err))
		return errors.Wrap(err, "save cart")
	}
	return nil
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []cart.Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Lines()
}

// Total returns Σ(price × quantity).
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Total()
}

// ItemCount returns Σ quantity.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.ItemCount()
}

// Identity returns whose cart is loaded.
func (c *Cart) Identity() cart.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Revision changes whenever the lines change. It is used to invalidate an
// applied coupon.
func (c *Cart) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rev
}

// snapshot returns the lines and revision read under one lock.
func (c *Cart) snapshot() ([]cart.Line, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Lines(), c.rev
}
