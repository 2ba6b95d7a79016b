package storefront

import (
	"strings"

	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/json"
	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/domain/cart"
	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/product"
)

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.Round(2).InexactFloat64())
}

// decodeMoney reads a JSON number or numeric string without going through
// float64.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
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

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id", "_id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "subCategory":
			p.SubCategory, err = d.Str()
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
	return p, err
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(l.ProductID)
	e.FieldStart("name")
	e.Str(l.Name)
	if l.Size != nil {
		e.FieldStart("size")
		e.Str(*l.Size)
	}
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("price")
	encodeMoney(e, l.Price)
	if l.Image != "" {
		e.FieldStart("image")
		e.Str(l.Image)
	}
	e.ObjEnd()
}

// decodeLine reads an order item as returned by the server.
func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "productId":
			l.ProductID, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "size":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if s != "" {
				l.Size = &s
			}
			return err
		case "quantity":
			l.Quantity, err = d.Int()
		case "price":
			l.Price, err = decodeMoney(d)
		case "image":
			l.Image, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	l.OriginalPrice = l.Price
	return l, err
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
