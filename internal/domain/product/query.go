package product

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// SortOrder selects how Query orders its results.
type SortOrder string

const (
	SortRelevant  SortOrder = "relevant"
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
	SortNewest    SortOrder = "newest"
)

// Filter narrows a product list. Zero values disable the corresponding
// criterion.
type Filter struct {
	Categories    []string
	SubCategories []string
	Search        string
	MinPrice      decimal.NullDecimal
	MaxPrice      decimal.NullDecimal
	Sort          SortOrder
}

// Query returns the products matching f, ordered by f.Sort. The input slice is
// never modified. Category matching is case-insensitive; search matches a
// case-insensitive substring of the name.
func Query(products []Product, f Filter) []Product {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if len(f.Categories) > 0 && !containsFold(f.Categories, p.Category) {
			continue
		}
		if len(f.SubCategories) > 0 && !containsFold(f.SubCategories, p.SubCategory) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if f.MinPrice.Valid && p.Price.LessThan(f.MinPrice.Decimal) {
			continue
		}
		if f.MaxPrice.Valid && p.Price.GreaterThan(f.MaxPrice.Decimal) {
			continue
		}
		out = append(out, p)
	}

	switch f.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return b.Price.Cmp(a.Price) })
	case SortNewest:
		slices.SortStableFunc(out, func(a, b Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}

	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
