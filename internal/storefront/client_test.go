package storefront

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/mishramart/internal/domain/cart"
	"github.com/xenking/mishramart/internal/domain/order"
)

func newTestClient(t *testing.T, r http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// readFields decodes a flat JSON request object into raw field values.
func readFields(t *testing.T, r *http.Request) map[string]string {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	out := map[string]string{}
	require.NoError(t, jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		raw, err := d.Raw()
		out[string(key)] = raw.String()
		return err
	}))
	return out
}

func TestClient_ListProducts(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/product/list", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"success":true,"products":[
			{"_id":"p1","name":"Cotton Shirt","category":"Men","price":499.5,
			 "sizes":["M","L"],"images":["https://cdn/p1.png"],"bestseller":true,
			 "createdAt":"2025-02-01T10:00:00Z","extra":{"ignored":[1,2]}},
			{"id":"p2","name":"Silk Dupatta","price":"300.10","sizes":[],"images":[]}
		]}`)
	})
	c := newTestClient(t, r)

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	p1 := products[0]
	assert.Equal(t, "p1", p1.ID)
	assert.True(t, p1.Price.Equal(dec("499.5")))
	assert.Equal(t, []string{"M", "L"}, p1.Sizes)
	assert.True(t, p1.Bestseller)
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), p1.CreatedAt.UTC())

	assert.Equal(t, "p2", products[1].ID)
	assert.True(t, products[1].Price.Equal(dec("300.10")))
}

func TestClient_ErrorMessageVerbatim(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/coupons/validate", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusUnprocessableEntity, `{"success":false,"message":"coupon has expired"}`)
	})
	r.Get("/api/orders/my", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusUnauthorized, `{"success":false,"message":"please sign in"}`)
	})
	r.Post("/api/wishlist/add", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"success":false,"message":"already saved"}`)
	})
	r.Delete("/api/wishlist/remove/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusBadGateway, `<html>bad gateway</html>`)
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	_, err := c.ValidateCoupon(ctx, "OLD10", dec("1230"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "coupon has expired", UserMessage(err))

	_, err = c.MyOrders(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Unauthorized())

	err = c.AddToWishlist(ctx, "p1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "already saved", apiErr.Message)

	err = c.RemoveFromWishlist(ctx, "p1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, genericErrorMessage, UserMessage(err))
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{BaseURL: base})
	_, err := c.ListProducts(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.Equal(t, networkErrorMessage, UserMessage(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Post("/api/coupons/validate", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Timeouts:   Timeouts{Coupon: 20 * time.Millisecond},
	})
	_, err := c.ValidateCoupon(context.Background(), "SAVE200", dec("1230"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_SessionCookie(t *testing.T) {
	var seen []string
	r := chi.NewRouter()
	r.Get("/api/wishlist", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("mm_session"); err == nil {
			seen = append(seen, ck.Value)
		} else {
			seen = append(seen, "")
		}
		writeBody(w, http.StatusOK, `{"success":true,"wishlist":[
			{"productId":"p1","product":{"_id":"p1","name":"Cotton Shirt","price":500}},
			{"productId":"p9"}
		]}`)
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	_, err := c.Wishlist(ctx)
	require.NoError(t, err)

	c.SetToken("tok-1")
	entries, err := c.Wishlist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Cotton Shirt", entries[0].Product.Name)
	assert.Nil(t, entries[1].Product)

	assert.Equal(t, []string{"", "tok-1"}, seen)
}

func TestClient_CreateOrder(t *testing.T) {
	var got map[string]string
	r := chi.NewRouter()
	r.Post("/api/orders/create", func(w http.ResponseWriter, r *http.Request) {
		got = readFields(t, r)
		writeBody(w, http.StatusCreated, `{"success":true,
			"order":{"orderId":"ord-7","amount":608,"status":"placed","razorpayOrderId":"order_gw7"},
			"razorpay":{"keyId":"rzp_test","orderId":"order_gw7","amount":60800,"currency":"INR","receipt":"ord-7"}}`)
	})
	c := newTestClient(t, r)

	size := "M"
	placed, err := c.CreateOrder(context.Background(), OrderRequest{
		Lines: []cart.Line{{ProductID: "p1", Name: "Cotton Shirt", Size: &size, Quantity: 1, Price: dec("500")}},
		TotalAmount:    dec("608"),
		DiscountAmount: dec("0"),
		Address:        validForm(order.PaymentRazorpay).Address,
		PaymentMethod:  order.PaymentRazorpay,
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-7", placed.OrderID)
	assert.True(t, placed.Amount.Equal(dec("608")))
	require.NotNil(t, placed.Gateway)
	assert.Equal(t, GatewayCheckout{KeyID: "rzp_test", OrderID: "order_gw7", Amount: 60800, Currency: "INR"}, *placed.Gateway)

	assert.Equal(t, `"razorpay"`, got["paymentMethod"])
	assert.Equal(t, "608", got["totalAmount"])
	assert.NotContains(t, got, "couponCode")
	assert.JSONEq(t, `[{"productId":"p1","name":"Cotton Shirt","size":"M","quantity":1,"price":500}]`, got["items"])
}

func TestClient_CreateOrderMissingID(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/orders/create", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusCreated, `{"success":true,"order":{}}`)
	})
	c := newTestClient(t, r)

	_, err := c.CreateOrder(context.Background(), OrderRequest{PaymentMethod: order.PaymentCOD})
	require.Error(t, err)
	assert.Equal(t, genericErrorMessage, UserMessage(err))
}

func TestClient_OrdersAndReorder(t *testing.T) {
	var cancelled string
	r := chi.NewRouter()
	r.Get("/api/orders/my", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"success":true,"orders":[
			{"orderId":"ord-1","status":"shipped","paymentStatus":"paid","amount":1030,
			 "trackingNumber":"TRK1","createdAt":"2025-03-01T10:00:00Z"}]}`)
	})
	r.Post("/api/orders/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		cancelled = chi.URLParam(r, "id")
		writeBody(w, http.StatusOK, `{"success":true,"order":{}}`)
	})
	r.Post("/api/orders/{id}/reorder", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"success":true,"items":[
			{"productId":"p1","name":"Cotton Shirt","size":"L","quantity":2,"price":500},
			{"productId":"p2","name":"Silk Dupatta","size":null,"quantity":1,"price":"300"}]}`)
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	orders, err := c.MyOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "TRK1", orders[0].TrackingNumber)
	assert.True(t, orders[0].Amount.Equal(dec("1030")))

	require.NoError(t, c.CancelOrder(ctx, "ord-1"))
	assert.Equal(t, "ord-1", cancelled)

	lines, err := c.Reorder(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "L", lines[0].SizeLabel())
	assert.Nil(t, lines[1].Size)
	assert.True(t, lines[1].OriginalPrice.Equal(dec("300")))
}
