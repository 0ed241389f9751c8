package chi

import (
	"net/http"

	"github.com/aatuh/shield/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ChiRouter wraps chi.Router to implement our interface.
type ChiRouter struct {
	*chi.Mux
}

// New creates a new chi router that implements ports.HTTPRouter.
func New() ports.HTTPRouter {
	return &ChiRouter{Mux: chi.NewRouter()}
}

// NewMux creates a new chi.Mux directly.
func NewMux() *chi.Mux {
	return chi.NewRouter()
}

// Middleware provides common middleware functions.
type Middleware struct{}

// NewMiddleware creates a new middleware instance that implements ports.HTTPMiddleware.
func NewMiddleware() ports.HTTPMiddleware {
	return &Middleware{}
}

// RequestID assigns a request ID and echoes it in the X-Request-Id
// response header.
func (m *Middleware) RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r)
		})
		return middleware.RequestID(echo)
	}
}

// RealIP returns the real IP middleware.
func (m *Middleware) RealIP() func(http.Handler) http.Handler {
	return middleware.RealIP
}

// RouteResolver returns a function reporting the route pattern a request
// will match on routes, such as "/users/{id}". Middleware registered with
// Use runs before chi has routed, so the pattern is found by matching
// against a scratch context. Unmatched requests resolve to their path.
func RouteResolver(routes chi.Routes) func(*http.Request) string {
	return func(r *http.Request) string {
		path := r.URL.RawPath
		if path == "" {
			path = r.URL.Path
		}
		rctx := chi.NewRouteContext()
		if routes.Match(rctx, r.Method, path) {
			if p := rctx.RoutePattern(); p != "" {
				return p
			}
		}
		return r.URL.Path
	}
}

// URLParam is a convenience function for direct usage.
func URLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
