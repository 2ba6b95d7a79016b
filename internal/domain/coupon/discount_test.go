package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name        string
		rule        *Rule
		amount      decimal.Decimal
		wantAmount  decimal.Decimal
		wantErrText string
	}{
		{
			name:       "percentage 18% of 1000",
			rule:       &Rule{Code: "PCT18", DiscountType: DiscountPercentage, Value: d("18")},
			amount:     d("1000"),
			wantAmount: d("180"),
		},
		{
			name:       "percentage rounds to two places",
			rule:       &Rule{Code: "PCT15", DiscountType: DiscountPercentage, Value: d("15")},
			amount:     d("1230.33"),
			wantAmount: d("184.55"),
		},
		{
			name:       "percentage capped by max discount",
			rule:       &Rule{Code: "CAP", DiscountType: DiscountPercentage, Value: d("50"), MaxDiscount: d("300")},
			amount:     d("1230"),
			wantAmount: d("300"),
		},
		{
			name:       "percentage 100% equals amount",
			rule:       &Rule{Code: "FREE", DiscountType: DiscountPercentage, Value: d("100")},
			amount:     d("250"),
			wantAmount: d("250"),
		},
		{
			name:       "fixed 200 off",
			rule:       &Rule{Code: "FLAT200", DiscountType: DiscountFixed, Value: d("200")},
			amount:     d("1230"),
			wantAmount: d("200"),
		},
		{
			name:       "fixed capped at amount",
			rule:       &Rule{Code: "FLAT500", DiscountType: DiscountFixed, Value: d("500")},
			amount:     d("120"),
			wantAmount: d("120"),
		},
		{
			name:       "minimum order met exactly",
			rule:       &Rule{Code: "MIN", DiscountType: DiscountFixed, Value: d("50"), MinOrder: d("500")},
			amount:     d("500"),
			wantAmount: d("50"),
		},
		{
			name:        "minimum order not met",
			rule:        &Rule{Code: "MIN", DiscountType: DiscountFixed, Value: d("50"), MinOrder: d("500")},
			amount:      d("499.99"),
			wantErrText: "requires a minimum order of 500.00",
		},
		{
			name:        "unsupported type",
			rule:        &Rule{Code: "ODD", DiscountType: DiscountType("bogo")},
			amount:      d("100"),
			wantErrText: "unsupported discount type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.rule, tt.amount)
			if tt.wantErrText != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrText)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.rule.Code, got.Code)
		})
	}
}

func TestDiscountType_Valid(t *testing.T) {
	assert.True(t, DiscountPercentage.Valid())
	assert.True(t, DiscountFixed.Valid())
	assert.False(t, DiscountType("free_lowest").Valid())
}
