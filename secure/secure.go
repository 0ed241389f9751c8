// Package secure composes the guards into one HTTP middleware. The chain is
// built once from Config and runs in a fixed order on every request.
package secure

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aatuh/shield/guard"
	"github.com/aatuh/shield/guards/csp"
	"github.com/aatuh/shield/guards/csrf"
	"github.com/aatuh/shield/guards/dnsprefetch"
	"github.com/aatuh/shield/guards/frameguard"
	"github.com/aatuh/shield/guards/hsts"
	"github.com/aatuh/shield/guards/noopen"
	"github.com/aatuh/shield/guards/nosniff"
	"github.com/aatuh/shield/guards/xssprotection"
	"github.com/aatuh/shield/logzap"
	"github.com/aatuh/shield/metrics"
	"github.com/aatuh/shield/ports"
	"github.com/aatuh/shield/session"
	"github.com/aatuh/shield/view"
)

// Config holds the options of every guard. The zero value disables all of
// them.
type Config struct {
	XFrame              frameguard.Options
	ContentTypeSniffing nosniff.Options
	HSTS                hsts.Options
	DNSPrefetch         dnsprefetch.Options
	CSP                 csp.Options
	CSRF                csrf.Options
	XSSProtection       xssprotection.Options
	NoOpen              noopen.Options
}

// ErrorHandler answers a request rejected by the chain.
type ErrorHandler func(w http.ResponseWriter, c *guard.Context, err error)

// Deps are optional collaborators.
type Deps struct {
	Tokens    ports.Tokens
	Encrypter ports.Encrypter
	// Views enables sharing csrf and csp values with templates.
	Views    *view.Engine
	Keywords *csp.Keywords
	Logger   ports.Logger
	Metrics  metrics.Recorder
	// Routes resolves the route pattern of a request. Defaults to the path.
	Routes       func(r *http.Request) string
	ErrorHandler ErrorHandler
}

// Handler runs the guard chain before the wrapped handler.
type Handler struct {
	chain   *guard.Chain
	views   bool
	routes  func(r *http.Request) string
	onError ErrorHandler
	log     ports.Logger
	metrics metrics.Recorder
}

var _ ports.SecurityHandler = (*Handler)(nil)

// New builds every guard. Configuration errors name the failing guard.
func New(cfg Config, deps Deps) (*Handler, error) {
	if deps.Logger == nil {
		deps.Logger = logzap.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopMetrics{}
	}
	if deps.Routes == nil {
		deps.Routes = func(r *http.Request) string { return r.URL.Path }
	}
	if deps.ErrorHandler == nil {
		deps.ErrorHandler = DefaultErrorHandler
	}

	csrfGuard, err := csrf.New(cfg.CSRF, csrf.Deps{
		Tokens:    deps.Tokens,
		Encrypter: deps.Encrypter,
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("secure: csrf: %w", err)
	}
	cspGuard, err := csp.New(cfg.CSP, deps.Keywords)
	if err != nil {
		return nil, fmt.Errorf("secure: csp: %w", err)
	}
	frameGuard, err := frameguard.New(cfg.XFrame)
	if err != nil {
		return nil, fmt.Errorf("secure: frameGuard: %w", err)
	}
	hstsGuard, err := hsts.New(cfg.HSTS)
	if err != nil {
		return nil, fmt.Errorf("secure: hsts: %w", err)
	}

	chain := guard.NewChain(
		guard.Entry{Name: "csrf", Guard: csrfGuard},
		guard.Entry{Name: "csp", Guard: cspGuard},
		guard.Entry{Name: "dnsPrefetch", Guard: dnsprefetch.New(cfg.DNSPrefetch)},
		guard.Entry{Name: "frameGuard", Guard: frameGuard},
		guard.Entry{Name: "hsts", Guard: hstsGuard},
		guard.Entry{Name: "noSniff", Guard: nosniff.New(cfg.ContentTypeSniffing)},
		guard.Entry{Name: "xssProtection", Guard: xssprotection.New(cfg.XSSProtection)},
		guard.Entry{Name: "noOpen", Guard: noopen.New(cfg.NoOpen)},
	)
	return &Handler{
		chain:   chain,
		views:   deps.Views != nil,
		routes:  deps.Routes,
		onError: deps.ErrorHandler,
		log:     deps.Logger,
		metrics: deps.Metrics,
	}, nil
}

// Guards lists the chain in execution order.
func (h *Handler) Guards() []string { return h.chain.Names() }

func (h *Handler) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := &guard.Context{Response: w, Request: r, Route: h.routes(r)}
			if s := session.FromContext(r.Context()); s != nil {
				c.Session = s
			}
			if h.views {
				l := view.LocalsFromContext(r.Context())
				if l == nil {
					l = view.NewLocals()
					c.Request = r.WithContext(view.WithLocals(r.Context(), l))
				}
				c.View = l
			}

			start := time.Now()
			err := h.chain.Run(c)
			h.metrics.ObserveHistogram(metrics.GuardChainSeconds, time.Since(start).Seconds(), nil)
			if err != nil {
				var f *guard.Failure
				if errors.As(err, &f) {
					h.metrics.IncCounter(metrics.GuardFailures, metrics.Labels{"guard": f.Guard})
				}
				h.log.Debug("secure: request rejected", "route", c.Route, "err", err)
				h.onError(w, c, err)
				return
			}
			next.ServeHTTP(w, c.Request)
		})
	}
}
