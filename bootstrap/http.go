package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/aatuh/shield/chi"
	"github.com/aatuh/shield/clock"
	"github.com/aatuh/shield/cors"
	"github.com/aatuh/shield/health"
	recoverx "github.com/aatuh/shield/httpx/recover"
	"github.com/aatuh/shield/metrics"
	"github.com/aatuh/shield/middleware/maxbody"
	"github.com/aatuh/shield/middleware/ratelimit"
	"github.com/aatuh/shield/middleware/requestlog"
	"github.com/aatuh/shield/ports"
	"github.com/aatuh/shield/secure"
	"github.com/aatuh/shield/session"
	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsPath serves Prometheus metrics.
const MetricsPath = "/metrics"

// Options assembles the default router.
type Options struct {
	Logger   ports.Logger
	Sessions *session.Manager
	Shield   secure.Config
	// Deps.Routes and Deps.Metrics are filled in by NewDefaultRouter.
	Deps         secure.Deps
	CORSOrigins  []string
	MaxBodyBytes int64
	// RateLimit throttles unsafe methods on App routes. Zero values take
	// the ratelimit defaults.
	RateLimit ratelimit.Options
	Health    []health.Checker
}

// Router exposes the root mux and the group behind rate limiting, sessions
// and guards.
type Router struct {
	Mux *gochi.Mux
	// App carries sessions and the guard chain. Register pages here.
	App    gochi.Router
	Shield *secure.Handler
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) { r.Mux.ServeHTTP(w, req) }

// NewDefaultRouter builds the middleware stack. Probes and metrics are
// mounted on the root and skip sessions and guards.
func NewDefaultRouter(opts Options) (*Router, error) {
	log := opts.Logger
	mux := chi.NewMux()
	var mw ports.HTTPMiddleware = chi.NewMiddleware()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg, nil)

	deps := opts.Deps
	deps.Logger = log
	deps.Metrics = rec
	deps.Routes = chi.RouteResolver(mux)
	shield, err := secure.New(opts.Shield, deps)
	if err != nil {
		return nil, err
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	mux.Use(mw.RequestID())
	mux.Use(mw.RealIP())
	mux.Use(recoverx.Middleware(log))
	mux.Use(requestlog.New(log).Handler)
	mux.Use(metrics.New(rec).Handler)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.New().Handler(cors.DefaultOptions(opts.CORSOrigins...)))
	}
	mux.Use(maxbody.New(opts.MaxBodyBytes).Handler)

	hh := health.NewHandler(3*time.Second, clock.NewSystemClock(), log, opts.Health...)
	hh.RegisterRoutes(&chi.ChiRouter{Mux: mux})
	mux.Handle(MetricsPath, metrics.HandlerFor(reg))

	app := mux.With(
		ratelimit.New(opts.RateLimit).Handler,
		opts.Sessions.Middleware(),
		shield.Middleware(),
	)
	return &Router{Mux: mux, App: app, Shield: shield}, nil
}

// StartServer runs an HTTP server and performs graceful shutdown when the
// context is canceled.
func StartServer(ctx context.Context, addr string, handler http.Handler, log ports.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shctx)
		return nil
	case err := <-errCh:
		return err
	}
}
