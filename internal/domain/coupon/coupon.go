package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order amount, optionally
	// capped by Rule.MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the order amount.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// MinimumNotMetError is returned when the order amount is below the coupon's
// minimum order value.
type MinimumNotMetError struct {
	Code    string
	Minimum decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return "coupon " + e.Code + " requires a minimum order of " + e.Minimum.StringFixed(2)
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinOrder     decimal.Decimal
	MaxDiscount  decimal.Decimal
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
	Active       bool
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
	DecrementUses(ctx context.Context, code string) error
	Upsert(ctx context.Context, rule *Rule) error
}
