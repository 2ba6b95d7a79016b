package storefront

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/cart"
	"github.com/xenking/mishramart/internal/domain/pricing"
)

const themeKey = "mm_theme_mode"

// Theme modes stored under mm_theme_mode.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var (
	// ErrNoCoupon is returned by ApplyCoupon for a blank code.
	ErrNoCoupon = errors.New("please enter a coupon code")
	// ErrUnknownProduct is returned when a product id is not in the catalog.
	ErrUnknownProduct = errors.New("product not found")
)

// API is everything a Session needs from the server. *Client implements it.
type API interface {
	ProductLister
	WishlistAPI
	OrderAPI
	ValidateCoupon(ctx context.Context, code string, amount decimal.Decimal) (*CouponResult, error)
	Reorder(ctx context.Context, orderID string) ([]cart.Line, error)
	SetToken(token string)
}

// Options configures a Session.
type Options struct {
	API    API
	Store  cart.Store
	KV     KV
	Engine pricing.Engine
	// Widget collects online payments; nil offers cash on delivery only.
	Widget    PaymentWidget
	NotifyTTL time.Duration
	Logger    *zap.Logger
}

// Session is the single set of shopper services created at start-up and
// shared by every view: catalog, cart, wishlist, notifications, coupon and
// checkout.
type Session struct {
	Notifier *Notifier
	Catalog  *Catalog
	Cart     *Cart
	Wishlist *Wishlist
	Checkout *Checkout

	api    API
	kv     KV
	engine pricing.Engine
	lg     *zap.Logger

	mu        sync.Mutex
	userID    string
	coupon    *pricing.AppliedCoupon
	couponRev uint64
}

// Open builds a Session and loads the guest cart.
func Open(ctx context.Context, opts Options) (*Session, error) {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	if opts.Engine == (pricing.Engine{}) {
		opts.Engine = pricing.Default()
	}

	s := &Session{
		Notifier: NewNotifier(opts.NotifyTTL),
		api:      opts.API,
		kv:       opts.KV,
		engine:   opts.Engine,
		lg:       lg,
	}
	s.Catalog = NewCatalog(opts.API, opts.KV, lg.Named("catalog"))
	s.Cart = NewCart(opts.Store, s.Notifier, lg.Named("cart"))
	s.Wishlist = NewWishlist(opts.API, s.Notifier)
	s.Checkout = NewCheckout(opts.API, s.Cart, s, opts.Widget, lg.Named("checkout"))
	s.Checkout.Subscribe(func(t Transition) {
		if t.To == StatePlaced {
			s.RemoveCoupon()
		}
	})

	if err := s.Cart.SwitchIdentity(ctx, cart.Guest); err != nil {
		return nil, err
	}
	return s, nil
}

// Close stops pending notification timers.
func (s *Session) Close() {
	s.Notifier.Close()
}

// UserID returns the signed-in user, or "" for a guest.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Login switches to userID's cart and wishlist. The guest cart is left in
// its own slot and is not merged into the user's cart.
func (s *Session) Login(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	s.api.SetToken(token)
	s.userID = userID
	s.coupon = nil
	s.mu.Unlock()

	if err := s.Cart.SwitchIdentity(ctx, cart.User(userID)); err != nil {
		return err
	}
	if err := s.Wishlist.Load(ctx); err != nil {
		s.lg.Warn("Load wishlist", zap.Error(err))
		s.Notifier.Show(KindError, UserMessage(err))
	}
	return nil
}

// Logout returns to the guest cart.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.api.SetToken("")
	s.userID = ""
	s.coupon = nil
	s.mu.Unlock()

	s.Wishlist.Reset()
	return s.Cart.SwitchIdentity(ctx, cart.Guest)
}

// AddToCart adds a catalog product. Products with sizes need one chosen.
func (s *Session) AddToCart(ctx context.Context, productID string, quantity int, size string) error {
	p, ok := s.Catalog.Product(productID)
	if !ok {
		return ErrUnknownProduct
	}
	if len(p.Sizes) > 0 && !p.HasSize(size) {
		err := &ValidationError{Message: "please select a size"}
		s.Notifier.Show(KindError, err.Message)
		return err
	}
	if len(p.Sizes) == 0 {
		size = ""
	}
	v, err := s.Catalog.View(ctx, p)
	if err != nil {
		return err
	}
	return s.Cart.Add(ctx, v, quantity, size)
}

// Reorder puts the items of a past order back into the cart.
func (s *Session) Reorder(ctx context.Context, orderID string) error {
	lines, err := s.api.Reorder(ctx, orderID)
	if err != nil {
		s.Notifier.Show(KindError, UserMessage(err))
		return err
	}
	for _, l := range lines {
		if err := s.Cart.AddLine(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

// ApplyCoupon validates code against the current pre-discount total. The
// coupon stays applied until removed or until the cart changes.
func (s *Session) ApplyCoupon(ctx context.Context, code string) (pricing.Breakdown, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return s.Quote(), ErrNoCoupon
	}

	s.mu.Lock()
	lines, rev := s.Cart.snapshot()
	basis := s.engine.Quote(lines, nil).PreDiscountTotal
	res, err := s.api.ValidateCoupon(ctx, code, basis)
	if err != nil {
		s.coupon = nil
		s.mu.Unlock()
		s.Notifier.Show(KindError, UserMessage(err))
		return s.Quote(), err
	}
	s.coupon = &pricing.AppliedCoupon{Code: res.Code, Discount: res.Discount, Basis: basis}
	s.couponRev = rev
	s.mu.Unlock()

	s.Notifier.Show(KindSuccess, "Coupon "+res.Code+" applied")
	return s.Quote(), nil
}

// RemoveCoupon drops the applied coupon, if any.
func (s *Session) RemoveCoupon() {
	s.mu.Lock()
	s.coupon = nil
	s.mu.Unlock()
}

// Quote prices the cart. A coupon applied before the last cart change is
// dropped and contributes nothing until it is applied again.
func (s *Session) Quote() pricing.Breakdown {
	s.mu.Lock()
	lines, rev := s.Cart.snapshot()
	invalidated := s.coupon != nil && rev != s.couponRev
	if invalidated {
		s.coupon = nil
	}
	b := s.engine.Quote(lines, s.coupon)
	if b.CouponStale {
		s.coupon = nil
		invalidated = true
	}
	s.mu.Unlock()

	if invalidated {
		s.Notifier.Show(KindInfo, "Your cart changed, please re-apply the coupon")
	}
	return b
}

// ThemeMode returns the stored theme, defaulting to light.
func (s *Session) ThemeMode(ctx context.Context) string {
	v, ok, err := s.kv.Get(ctx, themeKey)
	if err != nil {
		s.lg.Warn("Read theme", zap.Error(err))
		return ThemeLight
	}
	if !ok || (v != ThemeLight && v != ThemeDark) {
		return ThemeLight
	}
	return v
}

// SetThemeMode stores the theme.
func (s *Session) SetThemeMode(ctx context.Context, mode string) error {
	if mode != ThemeLight && mode != ThemeDark {
		return errors.Errorf("unknown theme %q", mode)
	}
	return s.kv.Set(ctx, themeKey, mode)
}
