// Package storefront is the shopper-side core of MishraMart: the catalog
// store, the persisted cart ledger, the wishlist, coupon handling and the
// checkout state machine, all talking to the REST API through Client.
package storefront

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/json"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/mishramart/internal/domain/cart"
	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/product"
)

const (
	sessionCookie   = "mm_session"
	maxResponseSize = 4 << 20

	networkErrorMessage = "network error, please check your connection and try again"
	genericErrorMessage = "something went wrong, please try again"
)

// APIError is the user-facing form of every failed API call. Message is the
// server's message verbatim when one was returned.
type APIError struct {
	// Status is the HTTP status, or 0 when the request never got a response.
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Unauthorized reports whether the shopper must log in first.
func (e *APIError) Unauthorized() bool { return e.Status == http.StatusUnauthorized }

// UserMessage returns the message to show the shopper for err.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Message != "":
			return apiErr.Message
		case apiErr.Status == 0:
			return networkErrorMessage
		default:
			return genericErrorMessage
		}
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return genericErrorMessage
}

// Timeouts bounds each class of API call.
type Timeouts struct {
	Catalog  time.Duration
	Coupon   time.Duration
	Order    time.Duration
	Wishlist time.Duration
}

// DefaultTimeouts returns the per-endpoint timeouts used by the storefront.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Catalog:  10 * time.Second,
		Coupon:   5 * time.Second,
		Order:    30 * time.Second,
		Wishlist: 5 * time.Second,
	}
}

// ClientConfig configures Client.
type ClientConfig struct {
	BaseURL  string
	Timeouts Timeouts
	// HTTPClient defaults to a client with an OpenTelemetry transport.
	HTTPClient *http.Client
}

// Client calls the MishraMart REST API. It is safe for concurrent use.
type Client struct {
	base     string
	http     *http.Client
	timeouts Timeouts

	mu    sync.RWMutex
	token string
}

// NewClient returns a Client for cfg. Zero timeouts take their default.
func NewClient(cfg ClientConfig) *Client {
	def := DefaultTimeouts()
	t := cfg.Timeouts
	if t.Catalog <= 0 {
		t.Catalog = def.Catalog
	}
	if t.Coupon <= 0 {
		t.Coupon = def.Coupon
	}
	if t.Order <= 0 {
		t.Order = def.Order
	}
	if t.Wishlist <= 0 {
		t.Wishlist = def.Wishlist
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		http:     hc,
		timeouts: t,
	}
}

// SetToken sets the session token sent with every request. An empty token
// makes the client anonymous.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do performs one API call. body, when non-nil, writes the fields of the JSON
// request object; field is called for every top-level response key except
// success.
func (c *Client) do(
	ctx context.Context,
	timeout time.Duration,
	method, path string,
	body func(e *jx.Encoder),
	field func(d *jx.Decoder, key string) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		var e jx.Encoder
		e.ObjStart()
		body(&e)
		e.ObjEnd()
		reqBody = bytes.NewReader(e.Bytes())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: networkErrorMessage, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: networkErrorMessage, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := errorMessage(data)
		if msg == "" {
			msg = genericErrorMessage
		}
		return &APIError{
			Status:  resp.StatusCode,
			Message: msg,
			Err:     errors.Errorf("%s %s: status %d", method, path, resp.StatusCode),
		}
	}

	success := true
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "success" {
			v, err := d.Bool()
			success = v
			return err
		}
		if field == nil {
			return d.Skip()
		}
		return field(d, string(key))
	}); err != nil {
		return &APIError{
			Status:  resp.StatusCode,
			Message: genericErrorMessage,
			Err:     errors.Wrapf(err, "decode %s %s", method, path),
		}
	}
	if !success {
		msg := errorMessage(data)
		if msg == "" {
			msg = genericErrorMessage
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	return nil
}

// errorMessage extracts the message field of an error body, if any.
func errorMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "message" && d.Next() == jx.String {
			v, err := d.Str()
			msg = v
			return err
		}
		return d.Skip()
	})
	return msg
}

// ListProducts fetches the full catalog.
func (c *Client) ListProducts(ctx context.Context) ([]product.Product, error) {
	var products []product.Product
	err := c.do(ctx, c.timeouts.Catalog, http.MethodGet, "/api/product/list", nil,
		func(d *jx.Decoder, key string) error {
			if key != "products" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				products = append(products, p)
				return err
			})
		})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CouponResult is the server's answer for a coupon code.
type CouponResult struct {
	Code        string
	Description string
	Discount    decimal.Decimal
}

// ValidateCoupon asks the server what code is worth against amount, the
// pre-discount total.
func (c *Client) ValidateCoupon(ctx context.Context, code string, amount decimal.Decimal) (*CouponResult, error) {
	res := &CouponResult{Code: strings.ToUpper(strings.TrimSpace(code))}
	err := c.do(ctx, c.timeouts.Coupon, http.MethodPost, "/api/coupons/validate",
		func(e *jx.Encoder) {
			e.FieldStart("code")
			e.Str(code)
			e.FieldStart("subtotal")
			encodeMoney(e, amount)
		},
		func(d *jx.Decoder, key string) error {
			switch key {
			case "coupon":
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "code":
						res.Code, err = d.Str()
					case "description":
						res.Description, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				})
			case "discountAmount":
				v, err := decodeMoney(d)
				res.Discount = v
				return err
			default:
				return d.Skip()
			}
		})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// OrderRequest is the order-creation payload built from the cart.
type OrderRequest struct {
	Lines          []cart.Line
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	CouponCode     string
	Address        order.Address
	PaymentMethod  order.PaymentMethod
}

// GatewayCheckout is what the payment widget is opened with.
type GatewayCheckout struct {
	KeyID    string
	OrderID  string
	Amount   int64
	Currency string
}

// PlacedOrder is the server's reply to order creation.
type PlacedOrder struct {
	OrderID        string
	GatewayOrderID string
	Amount         decimal.Decimal
	Status         string
	Gateway        *GatewayCheckout
}

// CreateOrder submits an order.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*PlacedOrder, error) {
	placed := &PlacedOrder{}
	err := c.do(ctx, c.timeouts.Order, http.MethodPost, "/api/orders/create",
		func(e *jx.Encoder) {
			e.FieldStart("items")
			e.ArrStart()
			for _, l := range req.Lines {
				encodeLine(e, l)
			}
			e.ArrEnd()
			e.FieldStart("totalAmount")
			encodeMoney(e, req.TotalAmount)
			e.FieldStart("discountAmount")
			encodeMoney(e, req.DiscountAmount)
			if req.CouponCode != "" {
				e.FieldStart("couponCode")
				e.Str(req.CouponCode)
			}
			e.FieldStart("shippingAddress")
			encodeAddress(e, req.Address)
			e.FieldStart("paymentMethod")
			e.Str(string(req.PaymentMethod))
		},
		func(d *jx.Decoder, key string) error {
			switch key {
			case "order":
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "orderId":
						placed.OrderID, err = d.Str()
					case "razorpayOrderId":
						placed.GatewayOrderID, err = d.Str()
					case "amount":
						placed.Amount, err = decodeMoney(d)
					case "status":
						placed.Status, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				})
			case "razorpay":
				g := &GatewayCheckout{}
				placed.Gateway = g
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "keyId":
						g.KeyID, err = d.Str()
					case "orderId":
						g.OrderID, err = d.Str()
					case "amount":
						g.Amount, err = d.Int64()
					case "currency":
						g.Currency, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				})
			default:
				return d.Skip()
			}
		})
	if err != nil {
		return nil, err
	}
	if placed.OrderID == "" {
		return nil, &APIError{Message: genericErrorMessage, Err: errors.New("order id missing in response")}
	}
	return placed, nil
}

// VerifyRequest carries the payment widget's success payload.
type VerifyRequest struct {
	OrderID        string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// VerifyPayment asks the server to check the gateway signature.
func (c *Client) VerifyPayment(ctx context.Context, req VerifyRequest) error {
	return c.do(ctx, c.timeouts.Order, http.MethodPost, "/api/orders/verify",
		func(e *jx.Encoder) {
			e.FieldStart("orderId")
			e.Str(req.OrderID)
			e.FieldStart("razorpayOrderId")
			e.Str(req.GatewayOrderID)
			e.FieldStart("razorpayPaymentId")
			e.Str(req.PaymentID)
			e.FieldStart("razorpaySignature")
			e.Str(req.Signature)
		}, nil)
}

// OrderSummary is one row of the shopper's order history.
type OrderSummary struct {
	OrderID        string
	Status         string
	PaymentStatus  string
	Amount         decimal.Decimal
	TrackingNumber string
	CreatedAt      time.Time
}

// MyOrders lists the shopper's orders.
func (c *Client) MyOrders(ctx context.Context) ([]OrderSummary, error) {
	var out []OrderSummary
	err := c.do(ctx, c.timeouts.Order, http.MethodGet, "/api/orders/my", nil,
		func(d *jx.Decoder, key string) error {
			if key != "orders" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				var s OrderSummary
				err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "orderId":
						s.OrderID, err = d.Str()
					case "status":
						s.Status, err = d.Str()
					case "paymentStatus":
						s.PaymentStatus, err = d.Str()
					case "amount":
						s.Amount, err = decodeMoney(d)
					case "trackingNumber":
						s.TrackingNumber, err = d.Str()
					case "createdAt":
						s.CreatedAt, err = json.DecodeDateTime(d)
					default:
						err = d.Skip()
					}
					return err
				})
				out = append(out, s)
				return err
			})
		})
	return out, err
}

// CancelOrder cancels an order that has not shipped.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, c.timeouts.Order, http.MethodPost, "/api/orders/"+url.PathEscape(orderID)+"/cancel", nil, nil)
}

// Reorder returns the lines of a past order, priced as they were ordered.
func (c *Client) Reorder(ctx context.Context, orderID string) ([]cart.Line, error) {
	var lines []cart.Line
	err := c.do(ctx, c.timeouts.Order, http.MethodPost, "/api/orders/"+url.PathEscape(orderID)+"/reorder", nil,
		func(d *jx.Decoder, key string) error {
			if key != "items" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				lines = append(lines, l)
				return err
			})
		})
	return lines, err
}

// WishlistEntry is one saved product.
type WishlistEntry struct {
	ProductID string
	Product   *product.Product
}

// Wishlist fetches the shopper's saved products.
func (c *Client) Wishlist(ctx context.Context) ([]WishlistEntry, error) {
	var out []WishlistEntry
	err := c.do(ctx, c.timeouts.Wishlist, http.MethodGet, "/api/wishlist", nil,
		func(d *jx.Decoder, key string) error {
			if key != "wishlist" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				var w WishlistEntry
				err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					switch string(key) {
					case "productId":
						v, err := d.Str()
						w.ProductID = v
						return err
					case "product":
						p, err := decodeProduct(d)
						w.Product = &p
						return err
					default:
						return d.Skip()
					}
				})
				out = append(out, w)
				return err
			})
		})
	return out, err
}

// AddToWishlist saves a product.
func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	return c.do(ctx, c.timeouts.Wishlist, http.MethodPost, "/api/wishlist/add",
		func(e *jx.Encoder) {
			e.FieldStart("productId")
			e.Str(productID)
		}, nil)
}

// RemoveFromWishlist drops a saved product.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	return c.do(ctx, c.timeouts.Wishlist, http.MethodDelete, "/api/wishlist/remove/"+url.PathEscape(productID), nil, nil)
}
