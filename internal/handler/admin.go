package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/product"
)

// AdminListOrders lists recent orders across all users.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, badRequest("invalid limit %q", v))
			return
		}
		limit = n
	}

	orders, err := h.orders.ListAll(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("orders")
		encodeOrders(e, orders)
	})
}

// AdminUpdateStatus moves an order along the fulfilment pipeline.
func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var status, tracking string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			status, err = d.Str()
		case "trackingNumber":
			tracking, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"),
		order.Status(strings.TrimSpace(status)), strings.TrimSpace(tracking))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("order")
		encodeOrder(e, o)
	})
}

// AdminUpsertProduct adds a product, or replaces it when the id exists.
func (h *Handler) AdminUpsertProduct(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = h.now()
	}

	if err := h.products.Upsert(r.Context(), p); err != nil {
		writeError(w, r, errors.Wrap(err, "upsert product"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("product")
		h.encodeProduct(e, *p)
	})
}

// AdminDeleteProduct removes a product from the catalog.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.products.Delete(r.Context(), id); err != nil {
		if !errors.Is(err, product.ErrNotFound) {
			err = errors.Wrap(err, "delete product")
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(id)
	})
}
