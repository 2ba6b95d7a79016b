package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/json"
	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/domain/wishlist"
)

const maxBodySize = 1 << 20

// badRequestError marks malformed request bodies.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// decodeBody reads the request body and calls field for every top-level key.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(data) == 0 {
		return badRequest("request body is required")
	}
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return field(d, string(key))
	}); err != nil {
		var bre *badRequestError
		if errors.As(err, &bre) {
			return err
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// writeJSON writes {"success":true, ...} with the fields written by body.
func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	if body != nil {
		body(&e)
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.Round(2).InexactFloat64())
}

// decodeMoney accepts a JSON number or a numeric string.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.Zero, badRequest("invalid amount %q", s)
		}
		return v, nil
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		f, err := d.Float64()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromFloat(f), nil
	}
}

// decodeOptStr decodes a string that may be null.
func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		out = append(out, s)
		return err
	})
	return out, err
}

func encodeStrings(e *jx.Encoder, vs []string) {
	e.ArrStart()
	for _, v := range vs {
		e.Str(v)
	}
	e.ArrEnd()
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("subCategory")
	e.Str(p.SubCategory)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.FieldStart("sizes")
	encodeStrings(e, p.Sizes)
	e.FieldStart("images")
	e.ArrStart()
	for _, img := range p.Images {
		e.Str(h.imageURL(img))
	}
	e.ArrEnd()
	e.FieldStart("bestseller")
	e.Bool(p.Bestseller)
	e.FieldStart("createdAt")
	json.EncodeDateTime(e, p.CreatedAt)
	e.ObjEnd()
}

// decodeProduct reads the admin product payload.
func decodeProduct(r *http.Request) (*product.Product, error) {
	p := &product.Product{}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = decodeOptStr(d)
		case "category":
			p.Category, err = d.Str()
		case "subCategory":
			p.SubCategory, err = decodeOptStr(d)
		case "price":
			p.Price, err = decodeMoney(d)
		case "sizes":
			p.Sizes, err = decodeStrings(d)
		case "images":
			p.Images, err = decodeStrings(d)
		case "bestseller":
			p.Bestseller, err = d.Bool()
		case "createdAt":
			p.CreatedAt, err = json.DecodeDateTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return nil, badRequest("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !p.Price.IsPositive() {
		return nil, badRequest("price must be greater than 0")
	}
	return p, nil
}

func encodeOrderItem(e *jx.Encoder, it order.OrderItem) {
	e.FieldStart("productId")
	e.Str(it.ProductID)
	e.FieldStart("name")
	e.Str(it.Name)
	e.FieldStart("size")
	if it.Size == "" {
		e.Null()
	} else {
		e.Str(it.Size)
	}
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("price")
	encodeMoney(e, it.Price)
	e.FieldStart("image")
	e.Str(it.Image)
}

func encodeOrderItems(e *jx.Encoder, items []order.OrderItem) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		encodeOrderItem(e, it)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// decodeOrderItem reads one cart line. The product id may be sent as
// productId, _id or id; it is normalized here.
func decodeOrderItem(d *jx.Decoder) (order.OrderItem, error) {
	var it order.OrderItem
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "productId", "_id", "id":
			it.ProductID, err = d.Str()
		case "name":
			it.Name, err = decodeOptStr(d)
		case "size":
			it.Size, err = decodeOptStr(d)
		case "quantity":
			it.Quantity, err = d.Int()
		case "price":
			it.Price, err = decodeMoney(d)
		case "image":
			it.Image, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.ObjStart()
	for _, f := range []struct{ k, v string }{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"email", a.Email},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipcode", a.ZipCode},
		{"country", a.Country},
		{"phone", a.Phone},
	} {
		e.FieldStart(f.k)
		e.Str(f.v)
	}
	e.ObjEnd()
}

func decodeAddress(d *jx.Decoder) (order.Address, error) {
	var a order.Address
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "firstName":
			dst = &a.FirstName
		case "lastName":
			dst = &a.LastName
		case "email":
			dst = &a.Email
		case "street":
			dst = &a.Street
		case "city":
			dst = &a.City
		case "state":
			dst = &a.State
		case "zipcode", "zipCode":
			dst = &a.ZipCode
		case "country":
			dst = &a.Country
		case "phone":
			dst = &a.Phone
		default:
			return d.Skip()
		}
		v, err := decodeOptStr(d)
		*dst = strings.TrimSpace(v)
		return err
	})
	return a, err
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("items")
	encodeOrderItems(e, o.Items)
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
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	e.FieldStart("shippingAddress")
	encodeAddress(e, o.ShippingAddress)
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("paymentStatus")
	e.Str(string(o.PaymentStatus))
	if o.GatewayOrderID != "" {
		e.FieldStart("razorpayOrderId")
		e.Str(o.GatewayOrderID)
	}
	e.FieldStart("status")
	e.Str(string(o.Status))
	if o.TrackingNumber != "" {
		e.FieldStart("trackingNumber")
		e.Str(o.TrackingNumber)
	}
	e.FieldStart("createdAt")
	json.EncodeDateTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	json.EncodeDateTime(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}

func (h *Handler) encodeWishlistItem(e *jx.Encoder, it wishlist.Item) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(it.ProductID)
	e.FieldStart("addedAt")
	json.EncodeDateTime(e, it.AddedAt)
	if it.Product != nil {
		e.FieldStart("product")
		h.encodeProduct(e, *it.Product)
	}
	e.ObjEnd()
}
