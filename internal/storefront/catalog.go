package storefront

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/product"
)

const (
	discountKeyPrefix = "product_discount_"
	minDiscount       = 5
	maxDiscount       = 40
)

var hundred = decimal.NewFromInt(100)

// ProductLister fetches the catalog. *Client implements it.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]product.Product, error)
}

// ProductView is a product as shown to the shopper: Price is what is
// charged, OriginalPrice is the struck-through price implied by the
// product's display discount.
type ProductView struct {
	product.Product
	DiscountPercent int
	OriginalPrice   decimal.Decimal
}

// Catalog holds the product list fetched once from the API. A failed fetch
// may be retried; a successful one is kept for the session.
type Catalog struct {
	api ProductLister
	kv  KV
	lg  *zap.Logger

	// intN picks a value in [0, n); swapped in tests.
	intN func(n int) int

	mu       sync.Mutex
	loaded   bool
	products []product.Product
}

// NewCatalog returns an empty Catalog.
func NewCatalog(api ProductLister, kv KV, lg *zap.Logger) *Catalog {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Catalog{api: api, kv: kv, lg: lg, intN: rand.IntN}
}

// Load fetches the catalog unless it is already loaded.
func (c *Catalog) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	products, err := c.api.ListProducts(ctx)
	if err != nil {
		return err
	}
	c.products = products
	c.loaded = true
	c.lg.Debug("Catalog loaded", zap.Int("products", len(products)))
	return nil
}

// Loaded reports whether the catalog has been fetched.
func (c *Catalog) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Products returns the products matching f.
func (c *Catalog) Products(f product.Filter) []product.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return product.Query(c.products, f)
}

// Product returns the product with id.
func (c *Catalog) Product(id string) (product.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return product.Product{}, false
}

// View attaches the display discount to p.
func (c *Catalog) View(ctx context.Context, p product.Product) (ProductView, error) {
	pct, err := c.Discount(ctx, p.ID)
	if err != nil {
		return ProductView{}, err
	}
	return ProductView{
		Product:         p,
		DiscountPercent: pct,
		OriginalPrice:   OriginalPrice(p.Price, pct),
	}, nil
}

// Discount returns the display discount of a product. It is drawn once from
// [5, 40] percent and kept under product_discount_<id>; later calls and
// concurrent sessions see the first stored value.
func (c *Catalog) Discount(ctx context.Context, productID string) (int, error) {
	key := discountKeyPrefix + productID
	v, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		return 0, errors.Wrap(err, "get discount")
	}
	if ok {
		if pct, err := strconv.Atoi(v); err == nil && pct >= minDiscount && pct <= maxDiscount {
			return pct, nil
		}
		c.lg.Warn("Replacing invalid stored discount", zap.String("key", key), zap.String("value", v))
		pct := c.draw()
		if err := c.kv.Set(ctx, key, strconv.Itoa(pct)); err != nil {
			return 0, errors.Wrap(err, "set discount")
		}
		return pct, nil
	}

	pct := c.draw()
	set, err := c.kv.SetNX(ctx, key, strconv.Itoa(pct))
	if err != nil {
		return 0, errors.Wrap(err, "set discount")
	}
	if set {
		return pct, nil
	}
	// Lost the race; use the winner's value.
	return c.Discount(ctx, productID)
}

func (c *Catalog) draw() int {
	return minDiscount + c.intN(maxDiscount-minDiscount+1)
}

// OriginalPrice returns the price before a pct percent discount:
// price / (1 - pct/100), rounded to two places.
func OriginalPrice(price decimal.Decimal, pct int) decimal.Decimal {
	if pct <= 0 || pct >= 100 {
		return price.Round(2)
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(pct))).Div(hundred)
	return price.Div(factor).Round(2)
}
