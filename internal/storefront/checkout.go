package storefront

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/pricing"
)

// State is a checkout state.
type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateSubmitting      State = "submitting"
	StateAwaitingPayment State = "awaiting_payment"
	StatePlaced          State = "placed"
	StateError           State = "error"
)

// ErrPaymentCancelled is returned by a PaymentWidget when the shopper closes
// it without paying.
var ErrPaymentCancelled = errors.New("payment was cancelled")

// ValidationError is a checkout form problem the shopper can fix.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PaymentError wraps a failure reported by the payment widget or by payment
// verification. The cart is kept so the shopper can retry.
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string { return "payment failed: " + e.Err.Error() }

func (e *PaymentError) Unwrap() error { return e.Err }

// Transition is one observed state change.
type Transition struct {
	From    State
	To      State
	Message string
	OrderID string
}

// PaymentRequest is what the gateway widget is opened with.
type PaymentRequest struct {
	KeyID          string
	OrderID        string
	GatewayOrderID string
	// Amount is in minor units (paise).
	Amount   int64
	Currency string
	Name     string
	Email    string
	Phone    string
}

// PaymentResult is the widget's success payload.
type PaymentResult struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// PaymentWidget collects an online payment. Pay blocks until the shopper
// pays, fails or gives up.
type PaymentWidget interface {
	Pay(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
}

// OrderAPI is the order side of the server. *Client implements it.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*PlacedOrder, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) error
}

// Quoter prices the current cart, including any applied coupon.
type Quoter interface {
	Quote() pricing.Breakdown
}

// CheckoutForm is the shipping form plus the chosen payment method.
type CheckoutForm struct {
	Address       order.Address
	PaymentMethod order.PaymentMethod
}

// Receipt describes a placed order.
type Receipt struct {
	OrderID       string
	Amount        decimal.Decimal
	PaymentMethod order.PaymentMethod
}

// Checkout drives Idle → Validating → Submitting → (AwaitingPayment) →
// Placed, falling to Error on failure. The cart is cleared only after the
// server confirmed the order and, for online payments, the payment.
type Checkout struct {
	api    OrderAPI
	cart   *Cart
	quoter Quoter
	widget PaymentWidget
	lg     *zap.Logger

	// run serializes submissions; mu guards the observable state.
	run sync.Mutex

	mu        sync.Mutex
	state     State
	message   string
	listeners []func(Transition)
}

// NewCheckout returns an idle Checkout. widget may be nil when only cash on
// delivery is offered.
func NewCheckout(api OrderAPI, c *Cart, quoter Quoter, widget PaymentWidget, lg *zap.Logger) *Checkout {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Checkout{
		api:    api,
		cart:   c,
		quoter: quoter,
		widget: widget,
		lg:     lg,
		state:  StateIdle,
	}
}

// State returns the current state and the message of the last transition.
func (co *Checkout) State() (State, string) {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.state, co.message
}

// Subscribe calls fn on every transition.
func (co *Checkout) Subscribe(fn func(Transition)) {
	co.mu.Lock()
	co.listeners = append(co.listeners, fn)
	co.mu.Unlock()
}

func (co *Checkout) transition(to State, msg, orderID string) {
	co.mu.Lock()
	t := Transition{From: co.state, To: to, Message: msg, OrderID: orderID}
	co.state = to
	co.message = msg
	listeners := append([]func(Transition){}, co.listeners...)
	co.mu.Unlock()

	co.lg.Debug("Checkout transition",
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.String("message", msg),
	)
	for _, fn := range listeners {
		fn(t)
	}
}

// Reset returns a finished or failed checkout to Idle.
func (co *Checkout) Reset() {
	if s, _ := co.State(); s != StateIdle {
		co.transition(StateIdle, "", "")
	}
}

// Submit runs one checkout attempt. Nothing is retried automatically.
func (co *Checkout) Submit(ctx context.Context, form CheckoutForm) (*Receipt, error) {
	co.run.Lock()
	defer co.run.Unlock()

	co.transition(StateValidating, "", "")
	lines := co.cart.Lines()
	if err := validateForm(form, len(lines)); err != nil {
		co.transition(StateIdle, err.Message, "")
		return nil, err
	}

	co.transition(StateSubmitting, "", "")
	quote := co.quoter.Quote()
	placed, err := co.api.CreateOrder(ctx, OrderRequest{
		Lines:          lines,
		TotalAmount:    quote.Total,
		DiscountAmount: quote.Discount,
		CouponCode:     quote.CouponCode,
		Address:        form.Address,
		PaymentMethod:  form.PaymentMethod,
	})
	if err != nil {
		co.transition(StateError, UserMessage(err), "")
		return nil, err
	}

	receipt := &Receipt{
		OrderID:       placed.OrderID,
		Amount:        quote.Total,
		PaymentMethod: form.PaymentMethod,
	}
	if !placed.Amount.IsZero() {
		receipt.Amount = placed.Amount
	}

	if form.PaymentMethod == order.PaymentRazorpay {
		if err := co.collectPayment(ctx, placed, form.Address); err != nil {
			return nil, err
		}
	}

	if err := co.cart.Clear(ctx); err != nil {
		// The order is placed; only the stored slot is stale.
		co.lg.Warn("Clear cart after checkout", zap.Error(err))
	}
	co.transition(StatePlaced, "Order placed successfully", placed.OrderID)
	return receipt, nil
}

func (co *Checkout) collectPayment(ctx context.Context, placed *PlacedOrder, addr order.Address) error {
	if co.widget == nil || placed.Gateway == nil {
		err := &PaymentError{Err: errors.New("online payment is not available")}
		co.transition(StateError, err.Error(), placed.OrderID)
		return err
	}

	co.transition(StateAwaitingPayment, "", placed.OrderID)
	gw := placed.Gateway
	res, err := co.widget.Pay(ctx, PaymentRequest{
		KeyID:          gw.KeyID,
		OrderID:        placed.OrderID,
		GatewayOrderID: gw.OrderID,
		Amount:         gw.Amount,
		Currency:       gw.Currency,
		Name:           strings.TrimSpace(addr.FirstName + " " + addr.LastName),
		Email:          addr.Email,
		Phone:          addr.Phone,
	})
	if err != nil {
		perr := &PaymentError{Err: err}
		co.transition(StateError, perr.Error(), placed.OrderID)
		return perr
	}

	gatewayOrderID := res.GatewayOrderID
	if gatewayOrderID == "" {
		gatewayOrderID = gw.OrderID
	}
	if err := co.api.VerifyPayment(ctx, VerifyRequest{
		OrderID:        placed.OrderID,
		GatewayOrderID: gatewayOrderID,
		PaymentID:      res.PaymentID,
		Signature:      res.Signature,
	}); err != nil {
		perr := &PaymentError{Err: err}
		co.transition(StateError, "payment failed: "+UserMessage(err), placed.OrderID)
		return perr
	}
	return nil
}

func validateForm(form CheckoutForm, lines int) *ValidationError {
	if lines == 0 {
		return &ValidationError{Message: "your cart is empty"}
	}
	if missing := form.Address.Missing(); len(missing) > 0 {
		return &ValidationError{Message: "please fill in: " + strings.Join(missing, ", ")}
	}
	if !form.PaymentMethod.Valid() {
		return &ValidationError{Message: "please select a payment method"}
	}
	return nil
}
