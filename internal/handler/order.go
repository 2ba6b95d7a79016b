package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/json"
	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/payment"
)

// CreateOrder places an order for the authenticated shopper. Prices and
// totals are recomputed server-side; the client's totalAmount is only
// checked against the recomputed payable total.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	req := order.CreateRequest{UserID: currentUser(r).UserID}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := decodeOrderItem(d)
				req.Items = append(req.Items, it)
				return err
			})
		case "totalAmount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := decodeMoney(d)
			req.TotalAmount = decimal.NewNullDecimal(v)
			return err
		case "couponCode":
			v, err := decodeOptStr(d)
			req.CouponCode = strings.TrimSpace(v)
			return err
		case "shippingAddress", "address":
			a, err := decodeAddress(d)
			req.Address = a
			return err
		case "paymentMethod":
			v, err := d.Str()
			req.PaymentMethod = order.PaymentMethod(strings.ToLower(strings.TrimSpace(v)))
			return err
		default:
			// discountAmount is informational; the server recomputes it.
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.FieldStart("order")
		encodeOrder(e, res.Order)
		if res.GatewayOrder != nil {
			e.FieldStart("razorpay")
			encodeGatewayOrder(e, res.GatewayOrder, res.GatewayKeyID)
		}
	})
}

func encodeGatewayOrder(e *jx.Encoder, g *payment.GatewayOrder, keyID string) {
	e.ObjStart()
	e.FieldStart("keyId")
	e.Str(keyID)
	e.FieldStart("orderId")
	e.Str(g.ID)
	e.FieldStart("amount")
	e.Int64(g.Amount)
	e.FieldStart("currency")
	e.Str(g.Currency)
	e.FieldStart("receipt")
	e.Str(g.Receipt)
	e.ObjEnd()
}

// VerifyPayment checks the gateway signature for an online payment.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	req := order.VerifyRequest{UserID: currentUser(r).UserID}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "orderId":
			dst = &req.OrderID
		case "razorpayOrderId", "razorpay_order_id":
			dst = &req.GatewayOrderID
		case "razorpayPaymentId", "razorpay_payment_id":
			dst = &req.PaymentID
		case "razorpaySignature", "razorpay_signature":
			dst = &req.Signature
		default:
			return d.Skip()
		}
		v, err := decodeOptStr(d)
		*dst = strings.TrimSpace(v)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"orderId", req.OrderID},
		{"razorpayOrderId", req.GatewayOrderID},
		{"razorpayPaymentId", req.PaymentID},
		{"razorpaySignature", req.Signature},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		writeError(w, r, badRequest("missing required fields: %s", strings.Join(missing, ", ")))
		return
	}

	o, err := h.orders.VerifyPayment(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// MyOrders lists the shopper's orders, newest first.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), currentUser(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("orders")
		encodeOrders(e, orders)
	})
}

// GetOrder returns one of the shopper's orders.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), currentUser(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// Invoice returns the priced lines and breakdown of an order.
func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.orders.Invoice(r.Context(), currentUser(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	o := inv.Order
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("invoice")
		e.ObjStart()
		e.FieldStart("orderId")
		e.Str(o.ID)
		e.FieldStart("createdAt")
		json.EncodeDateTime(e, o.CreatedAt)
		e.FieldStart("lines")
		e.ArrStart()
		for _, l := range inv.Lines {
			e.ObjStart()
			encodeOrderItem(e, l.OrderItem)
			e.FieldStart("lineTotal")
			encodeMoney(e, l.LineTotal)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.FieldStart("subtotal")
		encodeMoney(e, o.Amounts.Subtotal)
		e.FieldStart("deliveryFee")
		encodeMoney(e, o.Amounts.DeliveryFee)
		e.FieldStart("tax")
		encodeMoney(e, o.Amounts.Tax)
		e.FieldStart("discount")
		encodeMoney(e, o.Amounts.Discount)
		e.FieldStart("amount")
		encodeMoney(e, o.Amounts.Total)
		e.FieldStart("paymentMethod")
		e.Str(string(o.PaymentMethod))
		e.FieldStart("paymentStatus")
		e.Str(string(o.PaymentStatus))
		e.FieldStart("shippingAddress")
		encodeAddress(e, o.ShippingAddress)
		e.ObjEnd()
	})
}

// CancelOrder cancels an order that has not shipped yet.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), currentUser(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// Reorder returns the items of a past order for the client to add back to
// its cart.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	items, err := h.orders.Reorder(r.Context(), currentUser(r).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("items")
		encodeOrderItems(e, items)
	})
}
