package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteFinder resolves the route pattern serving a request, e.g.
// "/api/orders/{id}". It reports false for unrouted requests.
type RouteFinder func(r *http.Request) (string, bool)

// MakeRouteFinder returns a RouteFinder that matches requests against the
// chi routing tree without dispatching them.
func MakeRouteFinder(routes chi.Routes) RouteFinder {
	return func(r *http.Request) (string, bool) {
		rctx := chi.NewRouteContext()
		if !routes.Match(rctx, r.Method, r.URL.Path) {
			return "", false
		}
		return rctx.RoutePattern(), true
	}
}

func routeOrUnknown(find RouteFinder, r *http.Request) string {
	if find == nil {
		return "unknown"
	}
	if route, ok := find(r); ok {
		return route
	}
	return "unknown"
}
