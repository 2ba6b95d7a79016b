package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/mishramart/internal/domain/order"
)

const orderColumns = `id, user_id, items, subtotal, delivery_fee, tax, discount, total, coupon_code,
	shipping_address, payment_method, payment_status, gateway_order_id, gateway_payment_id,
	status, tracking_number, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`

	updateOrderSQL = `UPDATE orders SET
		payment_status = $2,
		gateway_payment_id = $3,
		status = $4,
		tracking_number = $5,
		updated_at = $6
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items and the shipping address are
// serialized to JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON,
		o.Amounts.Subtotal, o.Amounts.DeliveryFee, o.Amounts.Tax, o.Amounts.Discount, o.Amounts.Total,
		o.CouponCode, addrJSON,
		string(o.PaymentMethod), string(o.PaymentStatus), o.GatewayOrderID, o.GatewayPayment,
		string(o.Status), o.TrackingNumber, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns a single order. It returns order.ErrNotFound when no order
// has the id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns the latest limit orders across users.
func (r *OrderRepository) ListAll(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Update stores the mutable lifecycle fields of o.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, string(o.PaymentStatus), o.GatewayPayment, string(o.Status), o.TrackingNumber, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                   order.Order
		itemsJSON, addrJSON []byte
		method, payStatus   string
		status              string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON,
		&o.Amounts.Subtotal, &o.Amounts.DeliveryFee, &o.Amounts.Tax, &o.Amounts.Discount, &o.Amounts.Total,
		&o.CouponCode, &addrJSON,
		&method, &payStatus, &o.GatewayOrderID, &o.GatewayPayment,
		&status, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(payStatus)
	o.Status = order.Status(status)

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	return o, nil
}
