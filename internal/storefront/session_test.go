package storefront

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_QuoteScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session

	require.NoError(t, s.AddToCart(ctx, "p1", 2, "M"))

	b := s.Quote()
	assert.True(t, b.Subtotal.Equal(dec("1000")), b.Subtotal.String())
	assert.True(t, b.DeliveryFee.Equal(dec("50")))
	assert.True(t, b.Tax.Equal(dec("180")))
	assert.True(t, b.PreDiscountTotal.Equal(dec("1230")))

	b, err := s.ApplyCoupon(ctx, "save200")
	require.NoError(t, err)
	assert.True(t, b.Discount.Equal(dec("200")))
	assert.True(t, b.Total.Equal(dec("1030")), b.Total.String())
	assert.Equal(t, "SAVE200", b.CouponCode)

	require.Len(t, env.api.validated, 1)
	assert.True(t, env.api.validated[0].Equal(dec("1230")), "validated against the pre-discount total")
}

func TestSession_CartChangeInvalidatesCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session

	require.NoError(t, s.AddToCart(ctx, "p1", 2, "M"))
	_, err := s.ApplyCoupon(ctx, "SAVE200")
	require.NoError(t, err)

	require.NoError(t, s.Cart.UpdateQuantity(ctx, "p1", 3))
	b := s.Quote()
	assert.True(t, b.Discount.IsZero())
	assert.Empty(t, b.CouponCode)
	assert.True(t, b.Total.Equal(b.PreDiscountTotal))

	active := s.Notifier.Active()
	require.NotEmpty(t, active)
	assert.Equal(t, "Your cart changed, please re-apply the coupon", active[len(active)-1].Message)

	// Returning to the old subtotal does not bring the coupon back.
	require.NoError(t, s.Cart.UpdateQuantity(ctx, "p1", 2))
	assert.True(t, s.Quote().Discount.IsZero())

	b, err = s.ApplyCoupon(ctx, "SAVE200")
	require.NoError(t, err)
	assert.True(t, b.Total.Equal(dec("1030")))
}

func TestSession_TotalNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.api.coupons["HUGE"] = decimal.NewFromInt(5000)

	require.NoError(t, env.session.AddToCart(ctx, "p2", 1, ""))
	b, err := env.session.ApplyCoupon(ctx, "HUGE")
	require.NoError(t, err)
	assert.True(t, b.Total.IsZero(), b.Total.String())
	assert.False(t, b.Total.IsNegative())
}

func TestSession_ApplyCouponErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session
	require.NoError(t, s.AddToCart(ctx, "p2", 1, ""))

	_, err := s.ApplyCoupon(ctx, "  ")
	require.ErrorIs(t, err, ErrNoCoupon)
	assert.Empty(t, env.api.validated)

	b, err := s.ApplyCoupon(ctx, "BOGUS")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid coupon code", UserMessage(err))
	assert.True(t, b.Discount.IsZero())

	active := s.Notifier.Active()
	require.NotEmpty(t, active)
	last := active[len(active)-1]
	assert.Equal(t, KindError, last.Kind)
	assert.Equal(t, "invalid coupon code", last.Message)
}

func TestSession_RemoveCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session

	require.NoError(t, s.AddToCart(ctx, "p1", 2, "L"))
	_, err := s.ApplyCoupon(ctx, "SAVE200")
	require.NoError(t, err)
	s.RemoveCoupon()
	assert.True(t, s.Quote().Total.Equal(dec("1230")))
}

func TestSession_LoginDropsCoupon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session

	require.NoError(t, s.AddToCart(ctx, "p1", 2, "M"))
	_, err := s.ApplyCoupon(ctx, "SAVE200")
	require.NoError(t, err)

	require.NoError(t, s.Login(ctx, "u1", "tok"))
	assert.Equal(t, "u1", s.UserID())
	assert.True(t, s.Quote().Discount.IsZero())
}

func TestSession_Wishlist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session
	env.api.wishlist = []WishlistEntry{{ProductID: "p2"}}

	require.NoError(t, s.Login(ctx, "u1", "tok"))
	assert.True(t, s.Wishlist.Contains("p2"))

	p1, ok := s.Catalog.Product("p1")
	require.True(t, ok)
	saved, err := s.Wishlist.Toggle(ctx, p1)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Len(t, s.Wishlist.Entries(), 2)

	saved, err = s.Wishlist.Toggle(ctx, p1)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.False(t, s.Wishlist.Contains("p1"))

	require.NoError(t, s.Logout(ctx))
	assert.Empty(t, s.Wishlist.Entries())
}

func TestSession_WishlistErrorNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session
	env.api.wishErr = &APIError{Status: 401, Message: "please sign in"}

	// A failed wishlist load does not fail the login.
	require.NoError(t, s.Login(ctx, "u1", "tok"))

	p2, _ := s.Catalog.Product("p2")
	require.Error(t, s.Wishlist.Add(ctx, p2))
	assert.False(t, s.Wishlist.Contains("p2"))

	active := s.Notifier.Active()
	require.NotEmpty(t, active)
	assert.Equal(t, "please sign in", active[len(active)-1].Message)
}

func TestSession_ThemeMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session

	assert.Equal(t, ThemeLight, s.ThemeMode(ctx))
	require.NoError(t, s.SetThemeMode(ctx, ThemeDark))
	assert.Equal(t, ThemeDark, s.ThemeMode(ctx))
	got, err := env.mr.Get(themeKey)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, got)

	require.Error(t, s.SetThemeMode(ctx, "sepia"))

	env.mr.Set(themeKey, "neon")
	assert.Equal(t, ThemeLight, s.ThemeMode(ctx))
}

func TestUserMessage(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want string
	}{
		{"API", &APIError{Status: 422, Message: "coupon has expired"}, "coupon has expired"},
		{"Network", &APIError{Err: errors.New("dial tcp: refused")}, networkErrorMessage},
		{"Validation", &ValidationError{Message: "please select a size"}, "please select a size"},
		{"Wrapped", errors.Wrap(&APIError{Status: 400, Message: "bad"}, "create order"), "bad"},
		{"Other", errors.New("boom"), genericErrorMessage},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
