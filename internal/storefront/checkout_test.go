package storefront

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mishramart/internal/domain/cart"
	"github.com/xenking/mishramart/internal/domain/order"
)

type transitionLog struct {
	mu  sync.Mutex
	got []Transition
}

func (l *transitionLog) record(t Transition) {
	l.mu.Lock()
	l.got = append(l.got, t)
	l.mu.Unlock()
}

func (l *transitionLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]State, len(l.got))
	for i, t := range l.got {
		out[i] = t.To
	}
	return out
}

func watch(co *Checkout) *transitionLog {
	l := &transitionLog{}
	co.Subscribe(l.record)
	return l
}

func TestCheckout_CODSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session
	log := watch(s.Checkout)

	require.NoError(t, s.AddToCart(ctx, "p1", 2, "M"))
	_, err := s.ApplyCoupon(ctx, "SAVE200")
	require.NoError(t, err)

	receipt, err := s.Checkout.Submit(ctx, validForm(order.PaymentCOD))
	require.NoError(t, err)
	assert.Equal(t, "ord-1", receipt.OrderID)
	assert.True(t, receipt.Amount.Equal(dec("1030")), receipt.Amount.String())

	assert.Equal(t, []State{StateValidating, StateSubmitting, StatePlaced}, log.states())
	state, msg := s.Checkout.State()
	assert.Equal(t, StatePlaced, state)
	assert.Equal(t, "Order placed successfully", msg)

	require.Len(t, env.api.created, 1)
	req := env.api.created[0]
	assert.True(t, req.TotalAmount.Equal(dec("1030")))
	assert.True(t, req.DiscountAmount.Equal(dec("200")))
	assert.Equal(t, "SAVE200", req.CouponCode)
	assert.Len(t, req.Lines, 1)

	assert.Zero(t, s.Cart.ItemCount())
	stored, err := env.store.Load(ctx, cart.Guest.Slot())
	require.NoError(t, err)
	assert.Empty(t, stored)

	// The coupon is consumed by the order.
	assert.True(t, s.Quote().Discount.IsZero())
}

func TestCheckout_CreateFailureKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session
	env.api.createErr = &APIError{Message: networkErrorMessage, Err: errors.New("connection refused")}

	require.NoError(t, s.AddToCart(ctx, "p2", 2, ""))
	_, err := s.Checkout.Submit(ctx, validForm(order.PaymentCOD))
	require.Error(t, err)

	state, msg := s.Checkout.State()
	assert.Equal(t, StateError, state)
	assert.NotEqual(t, StatePlaced, state)
	assert.Equal(t, networkErrorMessage, msg)
	assert.Equal(t, 2, s.Cart.ItemCount())

	s.Checkout.Reset()
	state, _ = s.Checkout.State()
	assert.Equal(t, StateIdle, state)
}

func TestCheckout_Validation(t *testing.T) {
	for _, tt := range []struct {
		name string
		fill bool
		form func() CheckoutForm
		want string
	}{
		{
			name: "EmptyCart",
			form: func() CheckoutForm { return validForm(order.PaymentCOD) },
			want: "your cart is empty",
		},
		{
			name: "MissingAddress",
			fill: true,
			form: func() CheckoutForm {
				f := validForm(order.PaymentCOD)
				f.Address.City = " "
				f.Address.Phone = ""
				return f
			},
			want: "please fill in: city, phone",
		},
		{
			name: "NoPaymentMethod",
			fill: true,
			form: func() CheckoutForm { return validForm("") },
			want: "please select a payment method",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			s := env.session
			if tt.fill {
				require.NoError(t, s.AddToCart(ctx, "p2", 1, ""))
			}
			log := watch(s.Checkout)

			_, err := s.Checkout.Submit(ctx, tt.form())
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.want, vErr.Message)

			assert.Equal(t, []State{StateValidating, StateIdle}, log.states())
			_, msg := s.Checkout.State()
			assert.Equal(t, tt.want, msg)
			assert.Empty(t, env.api.created)
		})
	}
}

func razorpayEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	env.api.gateway = &GatewayCheckout{KeyID: "rzp_test", OrderID: "order_gw1", Amount: 60800, Currency: "INR"}
	require.NoError(t, env.session.AddToCart(context.Background(), "p2", 1, ""))
	return env
}

func TestCheckout_RazorpaySuccess(t *testing.T) {
	env := razorpayEnv(t)
	ctx := context.Background()
	s := env.session
	env.widget.result = &PaymentResult{PaymentID: "pay_1", Signature: "sig"}
	log := watch(s.Checkout)

	receipt, err := s.Checkout.Submit(ctx, validForm(order.PaymentRazorpay))
	require.NoError(t, err)
	assert.Equal(t, order.PaymentRazorpay, receipt.PaymentMethod)

	assert.Equal(t, []State{StateValidating, StateSubmitting, StateAwaitingPayment, StatePlaced}, log.states())

	require.Len(t, env.widget.got, 1)
	pay := env.widget.got[0]
	assert.Equal(t, "rzp_test", pay.KeyID)
	assert.Equal(t, "order_gw1", pay.GatewayOrderID)
	assert.EqualValues(t, 60800, pay.Amount)
	assert.Equal(t, "Asha Mishra", pay.Name)

	require.Len(t, env.api.verified, 1)
	assert.Equal(t, VerifyRequest{
		OrderID:        "ord-1",
		GatewayOrderID: "order_gw1",
		PaymentID:      "pay_1",
		Signature:      "sig",
	}, env.api.verified[0])
	assert.Zero(t, s.Cart.ItemCount())
}

func TestCheckout_RazorpayFailures(t *testing.T) {
	for _, tt := range []struct {
		name    string
		prepare func(env *testEnv)
		verify  int
	}{
		{
			name:    "Cancelled",
			prepare: func(env *testEnv) { env.widget.err = ErrPaymentCancelled },
		},
		{
			name: "VerifyRejected",
			prepare: func(env *testEnv) {
				env.widget.result = &PaymentResult{PaymentID: "pay_1", Signature: "forged"}
				env.api.verifyErr = &APIError{Status: 400, Message: "invalid payment signature"}
			},
			verify: 1,
		},
		{
			name:    "NoGateway",
			prepare: func(env *testEnv) { env.api.gateway = nil },
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			env := razorpayEnv(t)
			tt.prepare(env)
			s := env.session

			_, err := s.Checkout.Submit(context.Background(), validForm(order.PaymentRazorpay))
			var pErr *PaymentError
			require.ErrorAs(t, err, &pErr)

			state, msg := s.Checkout.State()
			assert.Equal(t, StateError, state)
			assert.Contains(t, msg, "payment failed")
			assert.Len(t, env.api.verified, tt.verify)
			assert.Equal(t, 1, s.Cart.ItemCount(), "cart is kept until payment is confirmed")
		})
	}
}

func TestCheckout_SubmitsSerially(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.session
	require.NoError(t, s.AddToCart(ctx, "p2", 1, ""))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Checkout.Submit(ctx, validForm(order.PaymentCOD))
		}()
	}
	wg.Wait()

	// The second submission sees the cart emptied by the first.
	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
		}
	}
	assert.Equal(t, 1, placed)
	assert.Len(t, env.api.created, 1)
}
