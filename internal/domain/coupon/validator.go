package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator validates a coupon code against an order amount and returns the
// computed discount. Validate never consumes a use; Redeem does and Release
// gives one back.
type Validator interface {
	Validate(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error)
	Redeem(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error)
	Release(ctx context.Context, code string) error
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for code, checks temporal validity and
// usage limits, and applies it to amount.
func (v *RepoValidator) Validate(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error) {
	_, d, err := v.check(ctx, code, amount)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Redeem performs the same checks as Validate and increments the usage
// counter on success.
func (v *RepoValidator) Redeem(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error) {
	rule, d, err := v.check(ctx, code, amount)
	if err != nil {
		return nil, err
	}
	if err := v.repo.IncrementUses(ctx, rule.Code); err != nil {
		return nil, errors.Wrap(err, "increment coupon uses")
	}
	return d, nil
}

// Release returns a use consumed by Redeem for an order that was never
// stored.
func (v *RepoValidator) Release(ctx context.Context, code string) error {
	if err := v.repo.DecrementUses(ctx, strings.TrimSpace(code)); err != nil {
		return errors.Wrap(err, "decrement coupon uses")
	}
	return nil
}

func (v *RepoValidator) check(ctx context.Context, code string, amount decimal.Decimal) (*Rule, *Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, ErrInvalidCoupon
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, nil, ErrInvalidCoupon
		}
		return nil, nil, errors.Wrap(err, "lookup coupon")
	}
	if !rule.Active {
		return nil, nil, ErrInvalidCoupon
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, nil, ErrCouponExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, nil, ErrCouponUsageLimitReached
	}

	d, err := Apply(rule, amount)
	if err != nil {
		return nil, nil, err
	}
	return rule, &d, nil
}
