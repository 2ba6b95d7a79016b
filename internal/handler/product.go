package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/mishramart/internal/domain/product"
)

// ListProducts returns the catalog. Optional query parameters narrow and
// order the list: category, subCategory (comma separated), search, minPrice,
// maxPrice and sort.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list products"))
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	products = product.Query(products, f)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("products")
		e.ArrStart()
		for _, p := range products {
			h.encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, product.ErrNotFound) {
			err = errors.Wrap(err, "get product")
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("product")
		h.encodeProduct(e, *p)
	})
}

func parseFilter(r *http.Request) (product.Filter, error) {
	q := r.URL.Query()
	f := product.Filter{
		Categories:    splitList(q.Get("category")),
		SubCategories: splitList(q.Get("subCategory")),
		Search:        q.Get("search"),
		Sort:          product.SortOrder(q.Get("sort")),
	}
	for _, p := range []struct {
		name string
		dst  *decimal.NullDecimal
	}{
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
	} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return product.Filter{}, badRequest("invalid %s %q", p.name, v)
		}
		*p.dst = decimal.NewNullDecimal(d)
	}
	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
