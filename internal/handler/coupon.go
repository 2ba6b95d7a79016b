package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ValidateCoupon previews a coupon against the amount the client would pay
// before discount. No use is consumed.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		code     string
		subtotal decimal.Decimal
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = decodeOptStr(d)
		case "subtotal":
			subtotal, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	code = strings.TrimSpace(code)
	if code == "" {
		writeError(w, r, badRequest("coupon code is required"))
		return
	}
	if subtotal.IsNegative() {
		writeError(w, r, badRequest("subtotal must not be negative"))
		return
	}

	d, err := h.coupons.Validate(r.Context(), code, subtotal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("coupon")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(d.Code)
		if d.Description != "" {
			e.FieldStart("description")
			e.Str(d.Description)
		}
		e.ObjEnd()
		e.FieldStart("discountAmount")
		encodeMoney(e, d.Amount)
	})
}
