package payment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRazorpay_CreateOrder(t *testing.T) {
	var gotAmount int64
	var gotReceipt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		body, _ := io.ReadAll(r.Body)
		_ = jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "amount":
				v, err := d.Int64()
				gotAmount = v
				return err
			case "receipt":
				v, err := d.Str()
				gotReceipt = v
				return err
			default:
				return d.Skip()
			}
		})

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","entity":"order","amount":103050,"currency":"INR","receipt":"ord-1","notes":[]}`))
	}))
	defer srv.Close()

	rp := NewRazorpay(RazorpayConfig{KeyID: "rzp_test_key", KeySecret: "secret", BaseURL: srv.URL})
	got, err := rp.CreateOrder(context.Background(), decimal.RequireFromString("1030.50"), "ord-1")

	require.NoError(t, err)
	assert.Equal(t, int64(103050), gotAmount)
	assert.Equal(t, "ord-1", gotReceipt)
	assert.Equal(t, "order_abc", got.ID)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, int64(103050), got.Amount)
	assert.Equal(t, "rzp_test_key", rp.KeyID())
}

func TestRazorpay_CreateOrderGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
	}))
	defer srv.Close()

	rp := NewRazorpay(RazorpayConfig{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})
	_, err := rp.CreateOrder(context.Background(), decimal.NewFromInt(10), "r")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestRazorpay_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"description":"upstream timeout"}}`))
	}))
	defer srv.Close()

	rp := NewRazorpay(RazorpayConfig{
		KeyID:           "k",
		KeySecret:       "s",
		BaseURL:         srv.URL,
		BreakerFailures: 2,
		BreakerCooldown: time.Hour,
	})
	ctx := context.Background()

	for range 2 {
		_, err := rp.CreateOrder(ctx, decimal.NewFromInt(10), "r")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadGateway, se.Status)
	}

	_, err := rp.CreateOrder(ctx, decimal.NewFromInt(10), "r")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open circuit does not reach the gateway")
}

func TestRazorpay_BreakerIgnoresRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"description":"bad receipt"}}`))
	}))
	defer srv.Close()

	rp := NewRazorpay(RazorpayConfig{KeyID: "k", KeySecret: "s", BaseURL: srv.URL, BreakerFailures: 1})
	for range 3 {
		_, err := rp.CreateOrder(context.Background(), decimal.NewFromInt(10), "r")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestRazorpay_CreateOrderRejectsZeroAmount(t *testing.T) {
	rp := NewRazorpay(RazorpayConfig{KeyID: "k", KeySecret: "s", BaseURL: "http://127.0.0.1:0"})
	_, err := rp.CreateOrder(context.Background(), decimal.Zero, "r")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid payment amount")
}

func TestVerify(t *testing.T) {
	sig := Sign("secret", "order_abc", "pay_xyz")

	require.NoError(t, Verify("secret", "order_abc", "pay_xyz", sig))
	assert.ErrorIs(t, Verify("secret", "order_abc", "pay_other", sig), ErrInvalidSignature)
	assert.ErrorIs(t, Verify("other", "order_abc", "pay_xyz", sig), ErrInvalidSignature)
	assert.ErrorIs(t, Verify("secret", "order_abc", "pay_xyz", "not-hex"), ErrInvalidSignature)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(123000), ToMinorUnits(decimal.NewFromInt(1230)))
	assert.Equal(t, int64(1), ToMinorUnits(decimal.RequireFromString("0.005")))
	assert.Equal(t, int64(9999), ToMinorUnits(decimal.RequireFromString("99.99")))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.CreateOrder(context.Background(), decimal.NewFromInt(1), "r")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, Disabled{}.VerifySignature("a", "b", "c"), ErrDisabled)
}
