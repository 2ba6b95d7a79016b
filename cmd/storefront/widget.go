package main

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/storefront"
)

// terminalWidget stands in for the hosted gateway checkout: it shows the
// gateway order and reads back the payment id and signature the gateway
// returned to the shopper.
type terminalWidget struct {
	sh *shell
}

func (w *terminalWidget) Pay(ctx context.Context, req storefront.PaymentRequest) (*storefront.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh := w.sh
	sh.printf("  pay %s %s for order %s\n", req.Currency, decimal.New(req.Amount, -2).StringFixed(2), req.OrderID)
	sh.printf("  gateway order %s (key %s)\n", req.GatewayOrderID, req.KeyID)

	paymentID, err := sh.ask("payment id (empty to cancel)", "")
	if err != nil {
		return nil, err
	}
	if paymentID == "" {
		return nil, storefront.ErrPaymentCancelled
	}
	signature, err := sh.ask("signature", "")
	if err != nil {
		return nil, err
	}
	if signature == "" {
		return nil, storefront.ErrPaymentCancelled
	}
	return &storefront.PaymentResult{
		GatewayOrderID: req.GatewayOrderID,
		PaymentID:      paymentID,
		Signature:      signature,
	}, nil
}
