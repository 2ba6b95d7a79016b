// Package handler serves the storefront REST API.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/mishramart/internal/domain/auth"
	"github.com/xenking/mishramart/internal/domain/coupon"
	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/domain/wishlist"
	"github.com/xenking/mishramart/pkg/httpmiddleware"
)

// SessionCookie is the cookie carrying the opaque session token.
const SessionCookie = "mm_session"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// Pepper is the HMAC key session tokens and API keys are hashed with.
	Pepper []byte
	// CouponRateLimit bounds coupon validation attempts per session.
	CouponRateLimit httpmiddleware.RateLimitConfig
}

// Deps are the services the Handler delegates to.
type Deps struct {
	Products product.Repository
	Coupons  coupon.Validator
	Orders   *order.Service
	Wishlist *wishlist.Service
	Sessions auth.SessionRepository
	APIKeys  auth.Repository
}

// Handler implements the storefront HTTP API.
type Handler struct {
	products product.Repository
	coupons  coupon.Validator
	orders   *order.Service
	wishlist *wishlist.Service
	sessions auth.SessionRepository
	apikeys  auth.Repository

	pepper       []byte
	imageBaseURL string
	couponLimit  httpmiddleware.RateLimitConfig
	now          func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, deps Deps) *Handler {
	if cfg.CouponRateLimit.Max <= 0 {
		cfg.CouponRateLimit.Max = 20
	}
	if cfg.CouponRateLimit.Window <= 0 {
		cfg.CouponRateLimit.Window = time.Minute
	}
	if cfg.CouponRateLimit.Message == "" {
		cfg.CouponRateLimit.Message = "too many coupon attempts, please try again later"
	}
	if cfg.CouponRateLimit.KeyFunc == nil {
		cfg.CouponRateLimit.KeyFunc = httpmiddleware.SessionKey(SessionCookie)
	}
	return &Handler{
		products:     deps.Products,
		coupons:      deps.Coupons,
		orders:       deps.Orders,
		wishlist:     deps.Wishlist,
		sessions:     deps.Sessions,
		apikeys:      deps.APIKeys,
		pepper:       cfg.Pepper,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		couponLimit:  cfg.CouponRateLimit,
		now:          time.Now,
	}
}

// Routes returns the /api routing tree.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/product/list", h.ListProducts)
		r.Get("/product/{id}", h.GetProduct)

		r.With(httpmiddleware.RateLimit(h.couponLimit)).
			Post("/coupons/validate", h.ValidateCoupon)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireUser)

			r.Post("/orders/create", h.CreateOrder)
			r.Post("/orders/verify", h.VerifyPayment)
			r.Get("/orders/my", h.MyOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Get("/orders/{id}/invoice", h.Invoice)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
			r.Post("/orders/{id}/reorder", h.Reorder)

			r.Get("/wishlist", h.ListWishlist)
			r.Post("/wishlist/add", h.AddToWishlist)
			r.Delete("/wishlist/remove/{productId}", h.RemoveFromWishlist)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Get("/orders", h.AdminListOrders)
			r.Post("/orders/{id}/status", h.AdminUpdateStatus)
			r.Post("/products", h.AdminUpsertProduct)
			r.Delete("/products/{id}", h.AdminDeleteProduct)
		})
	})
	return r
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}
