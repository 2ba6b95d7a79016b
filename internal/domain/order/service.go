package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/coupon"
	"github.com/xenking/mishramart/internal/domain/pricing"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/events"
	"github.com/xenking/mishramart/internal/payment"
)

// Sentinel errors for order validation and lifecycle.
var (
	ErrEmptyItems           = errors.New("items required")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrNotCancellable       = errors.New("order can no longer be cancelled")
	ErrAlreadyPaid          = errors.New("order is already paid")
	ErrNotOnlinePayment     = errors.New("order is not an online payment")
	ErrInvalidStatus        = errors.New("invalid order status")
)

// totalTolerance is the largest accepted difference between the client's
// payable total and the recomputed one.
var totalTolerance = decimal.RequireFromString("0.01")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidSizeError indicates a line item names a size the product lacks.
type InvalidSizeError struct {
	ProductID string
	Size      string
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("size %q is not available for product %s", e.Size, e.ProductID)
}

// MissingFieldsError lists blank required shipping address fields.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// TotalMismatchError indicates the client priced the cart differently.
type TotalMismatchError struct {
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("order total changed: expected %s, got %s",
		e.Expected.StringFixed(2), e.Got.StringFixed(2))
}

// PriceChangedError indicates the client's price snapshot no longer matches
// the catalog.
type PriceChangedError struct {
	ProductID string
	Expected  decimal.Decimal
	Got       decimal.Decimal
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("price of product %s changed to %s, please refresh your cart",
		e.ProductID, e.Expected.StringFixed(2))
}

// TransitionError indicates a forbidden status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	UserID        string
	Items         []OrderItem
	Address       Address
	PaymentMethod PaymentMethod
	CouponCode    string
	// TotalAmount is the payable total the client displayed, if sent.
	TotalAmount decimal.NullDecimal
}

// CreateResult holds the persisted order and, for online payments, the
// gateway order the client must pay against.
type CreateResult struct {
	Order        *Order
	GatewayOrder *payment.GatewayOrder
	GatewayKeyID string
}

// VerifyRequest carries the gateway's success payload back to the server.
type VerifyRequest struct {
	UserID         string
	OrderID        string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// InvoiceLine is a priced line on an invoice.
type InvoiceLine struct {
	OrderItem
	LineTotal decimal.Decimal
}

// Invoice is the printable summary of an order.
type Invoice struct {
	Order *Order
	Lines []InvoiceLine
}

// Service encapsulates order placement and lifecycle business logic.
type Service struct {
	products product.Repository
	coupons  coupon.Validator
	orders   Repository
	gateway  payment.Gateway
	events   events.Publisher
	pricing  pricing.Engine
	lg       *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Validator,
	orders Repository,
	gateway payment.Gateway,
	publisher events.Publisher,
	engine pricing.Engine,
	lg *zap.Logger,
) *Service {
	if gateway == nil {
		gateway = payment.Disabled{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{
		products: products,
		coupons:  coupons,
		orders:   orders,
		gateway:  gateway,
		events:   publisher,
		pricing:  engine,
		lg:       lg,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Create validates the request, prices it from the catalog, opens a gateway
// order for online payments and persists the order. COD orders redeem their
// coupon here; online orders redeem it once the payment is verified.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if missing := req.Address.Missing(); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	if isBlank(req.Address.Country) {
		req.Address.Country = "India"
	}

	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Amount())
	}
	quote := s.pricing.QuoteSubtotal(subtotal, nil)

	code := strings.TrimSpace(req.CouponCode)
	var applied *pricing.AppliedCoupon
	if code != "" {
		d, err := s.coupons.Validate(ctx, code, quote.PreDiscountTotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		applied = &pricing.AppliedCoupon{Code: d.Code, Discount: d.Amount, Basis: quote.PreDiscountTotal}
		quote = s.pricing.QuoteSubtotal(subtotal, applied)
	}

	if req.TotalAmount.Valid {
		if req.TotalAmount.Decimal.Sub(quote.Total).Abs().GreaterThan(totalTolerance) {
			return nil, &TotalMismatchError{Expected: quote.Total, Got: req.TotalAmount.Decimal}
		}
	}

	now := s.now()
	o := &Order{
		ID:     s.newID(),
		UserID: req.UserID,
		Items:  items,
		Amounts: Amounts{
			Subtotal:    quote.Subtotal,
			DeliveryFee: quote.DeliveryFee,
			Tax:         quote.Tax,
			Discount:    quote.Discount,
			Total:       quote.Total,
		},
		CouponCode:      quote.CouponCode,
		ShippingAddress: req.Address,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusPlaced,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result := &CreateResult{Order: o}
	if o.PaymentMethod == PaymentRazorpay {
		gwOrder, err := s.gateway.CreateOrder(ctx, o.Amounts.Total, o.ID)
		if err != nil {
			return nil, errors.Wrap(err, "create gateway order")
		}
		o.GatewayOrderID = gwOrder.ID
		result.GatewayOrder = gwOrder
		result.GatewayKeyID = s.gateway.KeyID()
	}

	redeemed := false
	if applied != nil && o.PaymentMethod == PaymentCOD {
		// Redeem re-checks limits that may have been reached since Validate.
		if _, err := s.coupons.Redeem(ctx, applied.Code, quote.PreDiscountTotal); err != nil {
			return nil, errors.Wrap(err, "redeem coupon")
		}
		redeemed = true
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if redeemed {
			s.releaseCoupon(ctx, o)
		}
		return nil, errors.Wrap(err, "create order")
	}

	s.publish(ctx, events.OrderPlaced, o)
	s.lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.String("total", o.Amounts.Total.StringFixed(2)),
	)
	return result, nil
}

// resolveItems checks every line against the catalog in a single batch and
// prices it from the catalog. A client price that differs from the catalog is
// rejected; a missing one is filled in.
func (s *Service) resolveItems(ctx context.Context, in []OrderItem) ([]OrderItem, error) {
	ids := make([]string, len(in))
	for i, item := range in {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	out := make([]OrderItem, len(in))
	for i, item := range in {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if item.Size != "" && !p.HasSize(item.Size) {
			return nil, &InvalidSizeError{ProductID: p.ID, Size: item.Size}
		}
		if item.Name == "" {
			item.Name = p.Name
		}
		if item.Image == "" {
			item.Image = p.Thumbnail()
		}
		if item.Price.IsPositive() && !item.Price.Equal(p.Price) {
			return nil, &PriceChangedError{ProductID: p.ID, Expected: p.Price, Got: item.Price}
		}
		item.Price = p.Price
		out[i] = item
	}
	return out, nil
}

// VerifyPayment checks the gateway signature for an online order. A bad
// signature marks the payment failed.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyRequest) (*Order, error) {
	o, err := s.Get(ctx, req.UserID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != PaymentRazorpay {
		return nil, ErrNotOnlinePayment
	}
	if o.PaymentStatus == PaymentPaid {
		if o.GatewayPayment == req.PaymentID {
			return o, nil
		}
		return nil, ErrAlreadyPaid
	}

	verr := payment.ErrInvalidSignature
	if req.GatewayOrderID == o.GatewayOrderID {
		verr = s.gateway.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature)
	}
	o.UpdatedAt = s.now()
	if verr != nil {
		o.PaymentStatus = PaymentFailed
		if err := s.orders.Update(ctx, o); err != nil {
			return nil, errors.Wrap(err, "update order")
		}
		s.lg.Warn("Payment verification failed",
			zap.String("order_id", o.ID),
			zap.Error(verr),
		)
		return nil, verr
	}

	o.PaymentStatus = PaymentPaid
	o.GatewayPayment = req.PaymentID
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	if o.CouponCode != "" {
		s.redeemPaid(ctx, o)
	}
	s.publish(ctx, events.OrderPaid, o)
	return o, nil
}

// redeemPaid consumes the coupon of a paid online order. The shopper has
// already paid the discounted amount, so a failure is logged and the order
// stays paid.
func (s *Service) redeemPaid(ctx context.Context, o *Order) {
	basis := o.Amounts.Subtotal.Add(o.Amounts.DeliveryFee).Add(o.Amounts.Tax)
	if _, err := s.coupons.Redeem(ctx, o.CouponCode, basis); err != nil {
		s.lg.Warn("Redeem coupon of paid order",
			zap.String("order_id", o.ID),
			zap.String("coupon", o.CouponCode),
			zap.Error(err),
		)
	}
}

// releaseCoupon gives back a use consumed for an order that was not stored.
func (s *Service) releaseCoupon(ctx context.Context, o *Order) {
	if err := s.coupons.Release(ctx, o.CouponCode); err != nil {
		s.lg.Error("Release coupon use",
			zap.String("order_id", o.ID),
			zap.String("coupon", o.CouponCode),
			zap.Error(err),
		)
	}
}

// Get returns the order if it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll returns up to limit orders across all users, newest first.
func (s *Service) ListAll(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.orders.ListAll(ctx, limit)
}

// Invoice returns the order with per-line totals.
func (s *Service) Invoice(ctx context.Context, userID, orderID string) (*Invoice, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	inv := &Invoice{Order: o, Lines: make([]InvoiceLine, len(o.Items))}
	for i, item := range o.Items {
		inv.Lines[i] = InvoiceLine{OrderItem: item, LineTotal: item.Amount().Round(2)}
	}
	return inv, nil
}

// Cancel cancels the user's order while it has not shipped.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return nil, ErrNotCancellable
	}
	o.Status = StatusCancelled
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	s.publish(ctx, events.OrderCancelled, o)
	return o, nil
}

// Reorder returns the items of a past order so the client can add them to
// its cart again.
func (s *Service) Reorder(ctx context.Context, userID, orderID string) ([]OrderItem, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return o.Items, nil
}

// UpdateStatus moves an order along the fulfilment pipeline. A non-empty
// tracking number replaces the stored one.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status, tracking string) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, &TransitionError{From: o.Status, To: status}
	}
	o.Status = status
	if tracking = strings.TrimSpace(tracking); tracking != "" {
		o.TrackingNumber = tracking
	}
	if status == StatusDelivered && o.PaymentMethod == PaymentCOD {
		o.PaymentStatus = PaymentPaid
	}
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	typ := events.OrderStatusChanged
	if status == StatusCancelled {
		typ = events.OrderCancelled
	}
	s.publish(ctx, typ, o)
	return o, nil
}

// publish emits an order event. Delivery failures are logged, never returned:
// the order is already persisted.
func (s *Service) publish(ctx context.Context, typ events.Type, o *Order) {
	err := s.events.Publish(ctx, events.OrderEvent{
		Type:          typ,
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		Total:         o.Amounts.Total,
		Email:         o.ShippingAddress.Email,
		OccurredAt:    o.UpdatedAt,
	})
	if err != nil {
		s.lg.Warn("Publish order event",
			zap.String("order_id", o.ID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
