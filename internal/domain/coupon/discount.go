package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount rule grants on amount. It returns
// *MinimumNotMetError when amount is below rule.MinOrder.
func Apply(rule *Rule, amount decimal.Decimal) (Discount, error) {
	if rule.MinOrder.IsPositive() && amount.LessThan(rule.MinOrder) {
		return Discount{}, &MinimumNotMetError{Code: rule.Code, Minimum: rule.MinOrder}
	}

	var value decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		value = amount.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			value = decimal.Min(value, rule.MaxDiscount)
		}
	case DiscountFixed:
		value = decimal.Min(rule.Value, amount)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	return Discount{
		Code:        rule.Code,
		Amount:      floorAtZero(value).Round(2),
		Description: rule.Description,
	}, nil
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
