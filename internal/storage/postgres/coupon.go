package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/mishramart/internal/domain/coupon"
)

const couponColumns = `code, discount_type, value, min_order, max_discount, description,
	valid_from, valid_until, max_uses, uses, active`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`

	// The usage guard lives in the statement so concurrent redemptions
	// cannot overshoot max_uses.
	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1
		WHERE UPPER(code) = UPPER($1) AND (max_uses = 0 OR uses < max_uses)`

	decrementCouponUsesSQL = `UPDATE coupons SET uses = uses - 1
		WHERE UPPER(code) = UPPER($1) AND uses > 0`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_order = EXCLUDED.min_order,
			max_discount = EXCLUDED.max_discount,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses,
			active = EXCLUDED.active`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses consumes one use of the coupon. It returns
// coupon.ErrCouponUsageLimitReached when the limit was reached concurrently.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponUsageLimitReached
	}
	return nil
}

// DecrementUses gives back one use. The counter never drops below zero.
func (r *CouponRepository) DecrementUses(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, decrementCouponUsesSQL, code); err != nil {
		return fmt.Errorf("decrementing uses for coupon %q: %w", code, err)
	}
	return nil
}

// Upsert inserts rule or replaces the rule with the same code. The usage
// counter is never reset by an update.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, string(rule.DiscountType), rule.Value, rule.MinOrder, rule.MaxDiscount,
		rule.Description, rule.ValidFrom, rule.ValidUntil, int32(rule.MaxUses), int32(rule.Uses), rule.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		maxUses      int32
		uses         int32
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &rule.MinOrder, &rule.MaxDiscount, &rule.Description,
		&rule.ValidFrom, &rule.ValidUntil, &maxUses, &uses, &rule.Active,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
