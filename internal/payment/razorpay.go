package payment

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// RazorpayConfig configures the Razorpay REST client.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	Currency  string
	BaseURL   string
	Timeout   time.Duration
	// BreakerFailures consecutive failed calls open the circuit for
	// BreakerCooldown. Rejections (4xx) do not count.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// StatusError is a non-200 answer from the gateway.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return "gateway returned " + strconv.Itoa(e.Status) + ": " + e.Message
}

// Razorpay implements Gateway over the Razorpay Orders REST API.
type Razorpay struct {
	cfg     RazorpayConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*GatewayOrder]
}

var _ Gateway = (*Razorpay)(nil)

// NewRazorpay returns a Razorpay client. Missing Currency, BaseURL and
// Timeout default to INR, the public API and 15s; the breaker opens after 5
// consecutive failures for 30s.
func NewRazorpay(cfg RazorpayConfig) *Razorpay {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	failures := uint32(cfg.BreakerFailures)
	return &Razorpay{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[*GatewayOrder](gobreaker.Settings{
			Name:        "razorpay",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			IsSuccessful: gatewayHealthy,
		}),
	}
}

// gatewayHealthy reports whether err leaves the gateway looking healthy:
// requests it rejected were still answered.
func gatewayHealthy(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status < http.StatusInternalServerError
	}
	return err == nil
}

// KeyID returns the public key id the client widget is opened with.
func (r *Razorpay) KeyID() string { return r.cfg.KeyID }

// CreateOrder creates a gateway order for amount (rupees) with the given
// receipt, typically the storefront order id. While the circuit is open it
// fails fast with ErrUnavailable.
func (r *Razorpay) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*GatewayOrder, error) {
	minor := ToMinorUnits(amount)
	if minor <= 0 {
		return nil, errors.Errorf("invalid payment amount %s", amount.StringFixed(2))
	}

	out, err := r.breaker.Execute(func() (*GatewayOrder, error) {
		return r.createOrder(ctx, minor, receipt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrUnavailable, "razorpay circuit open")
	}
	return out, err
}

func (r *Razorpay) createOrder(ctx context.Context, minor int64, receipt string) (*GatewayOrder, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("amount")
	e.Int64(minor)
	e.FieldStart("currency")
	e.Str(r.cfg.Currency)
	e.FieldStart("receipt")
	e.Str(receipt)
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/orders", bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.SetBasicAuth(r.cfg.KeyID, r.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read gateway response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Message: gatewayErrorMessage(body)}
	}

	out := &GatewayOrder{}
	if err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			out.ID, err = d.Str()
		case "amount":
			out.Amount, err = d.Int64()
		case "currency":
			out.Currency, err = d.Str()
		case "receipt":
			out.Receipt, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode gateway order")
	}
	if out.ID == "" {
		return nil, errors.New("gateway order without id")
	}
	return out, nil
}

// VerifySignature checks the signature returned by the checkout widget.
func (r *Razorpay) VerifySignature(gatewayOrderID, paymentID, signature string) error {
	return Verify(r.cfg.KeySecret, gatewayOrderID, paymentID, signature)
}

// gatewayErrorMessage extracts error.description from a gateway error body.
func gatewayErrorMessage(body []byte) string {
	msg := "unknown error"
	_ = jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "description" {
				return d.Skip()
			}
			s, err := d.Str()
			if err == nil && s != "" {
				msg = s
			}
			return err
		})
	})
	return msg
}
