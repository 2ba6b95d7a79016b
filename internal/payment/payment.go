// Package payment talks to the third-party payment gateway: it creates
// gateway orders for online payments and verifies the signatures the
// gateway's checkout widget hands back to the client.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrDisabled is returned when no gateway credentials are configured.
	ErrDisabled = errors.New("online payments are not available")
	// ErrUnavailable is returned while the gateway is failing.
	ErrUnavailable = errors.New("online payments are temporarily unavailable, please try again later")
	// ErrInvalidSignature is returned when a payment signature does not match.
	ErrInvalidSignature = errors.New("payment signature verification failed")
)

// GatewayOrder is the gateway-side order a client pays against.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// Gateway creates gateway orders and verifies payment signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*GatewayOrder, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) error
	KeyID() string
}

// ToMinorUnits converts a rupee amount to paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Sign returns the hex HMAC-SHA256 signature the gateway issues for a
// successful payment: HMAC(secret, orderID + "|" + paymentID).
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against Sign in constant time.
func Verify(secret, gatewayOrderID, paymentID, signature string) error {
	want, err := hex.DecodeString(Sign(secret, gatewayOrderID, paymentID))
	if err != nil {
		return errors.Wrap(err, "decode expected signature")
	}
	got, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(want, got) {
		return ErrInvalidSignature
	}
	return nil
}

// Disabled is a Gateway used when online payments are not configured.
type Disabled struct{}

var _ Gateway = Disabled{}

// CreateOrder always fails with ErrDisabled.
func (Disabled) CreateOrder(context.Context, decimal.Decimal, string) (*GatewayOrder, error) {
	return nil, ErrDisabled
}

// VerifySignature always fails with ErrDisabled.
func (Disabled) VerifySignature(string, string, string) error { return ErrDisabled }

// KeyID returns an empty key id.
func (Disabled) KeyID() string { return "" }
