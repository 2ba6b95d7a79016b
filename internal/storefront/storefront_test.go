package storefront

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mishramart/internal/domain/cart"
	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/pricing"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/storage/redis"
)

// --- Fakes ---

type fakeAPI struct {
	mu sync.Mutex

	products  []product.Product
	listErr   error
	listCalls int

	coupons   map[string]decimal.Decimal
	validated []decimal.Decimal

	createErr error
	created   []OrderRequest
	gateway   *GatewayCheckout

	verifyErr error
	verified  []VerifyRequest

	wishlist []WishlistEntry
	wishErr  error
	reorder  []cart.Line
	token    string
}

func (f *fakeAPI) ListProducts(context.Context) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.products), nil
}

func (f *fakeAPI) ValidateCoupon(_ context.Context, code string, amount decimal.Decimal) (*CouponResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, amount)
	code = strings.ToUpper(code)
	d, ok := f.coupons[code]
	if !ok {
		return nil, &APIError{Status: 422, Message: "invalid coupon code"}
	}
	return &CouponResult{Code: code, Discount: d}, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, req OrderRequest) (*PlacedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	placed := &PlacedOrder{OrderID: "ord-1", Amount: req.TotalAmount, Status: "placed"}
	if req.PaymentMethod == order.PaymentRazorpay && f.gateway != nil {
		placed.Gateway = f.gateway
		placed.GatewayOrderID = f.gateway.OrderID
	}
	return placed, nil
}

func (f *fakeAPI) VerifyPayment(_ context.Context, req VerifyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, req)
	return f.verifyErr
}

func (f *fakeAPI) Wishlist(context.Context) ([]WishlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.wishlist), f.wishErr
}

func (f *fakeAPI) AddToWishlist(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wishErr != nil {
		return f.wishErr
	}
	f.wishlist = append(f.wishlist, WishlistEntry{ProductID: id})
	return nil
}

func (f *fakeAPI) RemoveFromWishlist(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wishErr != nil {
		return f.wishErr
	}
	f.wishlist = slices.DeleteFunc(f.wishlist, func(e WishlistEntry) bool { return e.ProductID == id })
	return nil
}

func (f *fakeAPI) Reorder(context.Context, string) ([]cart.Line, error) {
	return f.reorder, nil
}

func (f *fakeAPI) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

type fakeWidget struct {
	result *PaymentResult
	err    error
	got    []PaymentRequest
}

func (w *fakeWidget) Pay(_ context.Context, req PaymentRequest) (*PaymentResult, error) {
	w.got = append(w.got, req)
	return w.result, w.err
}

// --- Helpers ---

func testProducts() []product.Product {
	created := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return []product.Product{
		{ID: "p1", Name: "Cotton Shirt", Category: "Men", SubCategory: "Topwear",
			Price: decimal.NewFromInt(500), Sizes: []string{"M", "L"}, Images: []string{"p1.png"}, CreatedAt: created},
		{ID: "p2", Name: "Silk Dupatta", Category: "Women", SubCategory: "Accessories",
			Price: decimal.NewFromInt(300), CreatedAt: created.Add(time.Hour)},
	}
}

type testEnv struct {
	api     *fakeAPI
	widget  *fakeWidget
	mr      *miniredis.Miniredis
	store   *redis.CartStore
	session *Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := &fakeAPI{
		products: testProducts(),
		coupons:  map[string]decimal.Decimal{"SAVE200": decimal.NewFromInt(200)},
	}
	widget := &fakeWidget{}
	store := redis.NewCartStore(client)

	s, err := Open(context.Background(), Options{
		API:       api,
		Store:     store,
		KV:        redis.NewKV(client),
		Engine:    pricing.Default(),
		Widget:    widget,
		NotifyTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Catalog.Load(context.Background()))

	return &testEnv{api: api, widget: widget, mr: mr, store: store, session: s}
}

func validForm(method order.PaymentMethod) CheckoutForm {
	return CheckoutForm{
		Address: order.Address{
			FirstName: "Asha", LastName: "Mishra", Email: "asha@example.com",
			Street: "12 MG Road", City: "Pune", State: "MH", ZipCode: "411001", Phone: "9999999999",
		},
		PaymentMethod: method,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
