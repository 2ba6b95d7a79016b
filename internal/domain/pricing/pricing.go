// Package pricing computes the payable amount of a cart: subtotal, delivery
// fee, flat tax, coupon discount and total, in that fixed order.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/domain/cart"
)

var (
	// DefaultDeliveryFee is the flat delivery charge for a non-empty cart.
	DefaultDeliveryFee = decimal.NewFromInt(50)
	// DefaultTaxRate is the flat tax applied to the subtotal.
	DefaultTaxRate = decimal.RequireFromString("0.18")
)

// AppliedCoupon is a server-validated coupon. Discount is the amount the
// server returned for Basis, the pre-discount total the code was validated
// against. A coupon is only honoured while the cart still prices to Basis.
type AppliedCoupon struct {
	Code     string
	Discount decimal.Decimal
	Basis    decimal.Decimal
}

// Breakdown is the result of pricing a cart.
type Breakdown struct {
	Subtotal         decimal.Decimal
	DeliveryFee      decimal.Decimal
	Tax              decimal.Decimal
	PreDiscountTotal decimal.Decimal
	Discount         decimal.Decimal
	Total            decimal.Decimal
	// CouponCode is set when an applied coupon contributed to Discount.
	CouponCode string
	// CouponStale is set when a coupon was supplied but the cart no longer
	// prices to the total it was validated against.
	CouponStale bool
}

// Engine holds the fixed pricing constants. The zero value is not usable;
// construct with New or Default.
type Engine struct {
	deliveryFee decimal.Decimal
	taxRate     decimal.Decimal
}

// New returns an Engine with the given delivery fee and tax rate.
func New(deliveryFee, taxRate decimal.Decimal) Engine {
	return Engine{deliveryFee: deliveryFee, taxRate: taxRate}
}

// Default returns an Engine with DefaultDeliveryFee and DefaultTaxRate.
func Default() Engine {
	return New(DefaultDeliveryFee, DefaultTaxRate)
}

// DeliveryFee returns the configured flat delivery fee.
func (e Engine) DeliveryFee() decimal.Decimal { return e.deliveryFee }

// TaxRate returns the configured flat tax rate.
func (e Engine) TaxRate() decimal.Decimal { return e.taxRate }

// Quote prices lines with an optional applied coupon.
func (e Engine) Quote(lines []cart.Line, coupon *AppliedCoupon) Breakdown {
	return e.QuoteSubtotal(cart.Subtotal(lines), coupon)
}

// QuoteSubtotal prices a precomputed subtotal. An empty cart (zero subtotal)
// carries no delivery fee.
func (e Engine) QuoteSubtotal(subtotal decimal.Decimal, coupon *AppliedCoupon) Breakdown {
	b := Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: decimal.Zero,
		Tax:         subtotal.Mul(e.taxRate),
		Discount:    decimal.Zero,
	}
	if subtotal.IsPositive() {
		b.DeliveryFee = e.deliveryFee
	}
	b.PreDiscountTotal = b.Subtotal.Add(b.DeliveryFee).Add(b.Tax)

	if coupon != nil {
		if coupon.Basis.Round(2).Equal(b.PreDiscountTotal.Round(2)) {
			b.Discount = coupon.Discount
			b.CouponCode = coupon.Code
		} else {
			b.CouponStale = true
		}
	}

	b.Total = b.PreDiscountTotal.Sub(b.Discount)
	if b.Total.IsNegative() {
		b.Total = decimal.Zero
	}

	b.Subtotal = b.Subtotal.Round(2)
	b.Tax = b.Tax.Round(2)
	b.PreDiscountTotal = b.PreDiscountTotal.Round(2)
	b.Discount = b.Discount.Round(2)
	b.Total = b.Total.Round(2)
	return b
}
