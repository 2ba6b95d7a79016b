package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// ListWishlist returns the shopper's saved products.
func (h *Handler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.wishlist.List(r.Context(), currentUser(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("wishlist")
		e.ArrStart()
		for _, it := range items {
			h.encodeWishlistItem(e, it)
		}
		e.ArrEnd()
	})
}

// AddToWishlist saves a product. Saving it twice is not an error.
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	var productID string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId", "_id", "id":
			v, err := d.Str()
			productID = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.wishlist.Add(r.Context(), currentUser(r).UserID, productID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("productId")
		e.Str(productID)
	})
}

// RemoveFromWishlist drops a saved product. Removing a product that is not
// saved succeeds with removed=false.
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	removed, err := h.wishlist.Remove(r.Context(), currentUser(r).UserID, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("removed")
		e.Bool(removed)
	})
}
