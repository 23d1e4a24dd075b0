package guard

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	PathHome         = "/"
	PathLogin        = "/login"
	PathSignup       = "/signup"
	PathCart         = "/cart"
	PathCheckout     = "/checkout"
	PathProduct      = "/product-detail/{id}"
	PathOrderSuccess = "/order-success/{id}"
	PathOrders       = "/orders"
)

// Access classifies a route.
type Access int

const (
	// Protected routes require a session.
	Protected Access = iota
	// GuestOnly routes send signed-in users to the home view.
	GuestOnly
)

// Route is one entry of the route table.
type Route struct {
	Pattern string
	Access  Access
}

// DefaultRoutes is the storefront's view table.
var DefaultRoutes = []Route{
	{Pattern: PathHome, Access: Protected},
	{Pattern: PathLogin, Access: GuestOnly},
	{Pattern: PathSignup, Access: GuestOnly},
	{Pattern: PathCart, Access: Protected},
	{Pattern: PathCheckout, Access: Protected},
	{Pattern: PathProduct, Access: Protected},
	{Pattern: PathOrderSuccess, Access: Protected},
	{Pattern: PathOrders, Access: Protected},
}

// table matches view paths with chi's radix tree.
type table struct {
	mux    *chi.Mux
	access map[string]Access
}

var noop = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

func newTable(routes []Route) *table {
	t := &table{mux: chi.NewRouter(), access: make(map[string]Access, len(routes))}
	for _, r := range routes {
		t.mux.Get(r.Pattern, noop)
		t.access[r.Pattern] = r.Access
	}
	return t
}

// match returns the matched pattern and its URL params.
func (t *table) match(path string) (string, map[string]string, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = PathHome
	}
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) {
		return "", nil, false
	}
	pattern := rctx.RoutePattern()
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return pattern, params, true
}

// OrderSuccessPath builds the confirmation view path for an order id.
func OrderSuccessPath(id string) string {
	return strings.Replace(PathOrderSuccess, "{id}", id, 1)
}

// ProductPath builds the product detail view path.
func ProductPath(id string) string {
	return strings.Replace(PathProduct, "{id}", id, 1)
}
