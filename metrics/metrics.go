// Package metrics records HTTP traffic and guard outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names understood by PrometheusRecorder.
const (
	HTTPRequests      = "http_requests_total"
	HTTPDuration      = "http_request_duration_seconds"
	CSRFChecks        = "shield_csrf_checks_total"
	GuardFailures     = "shield_guard_failures_total"
	GuardChainSeconds = "shield_guard_chain_duration_seconds"
)

// UnmatchedRoute labels requests no route pattern matched, keeping label
// cardinality bounded under path scanning.
const UnmatchedRoute = "unmatched"

// CSRF check outcomes.
const (
	OutcomeVerified = "verified"
	OutcomeSkipped  = "skipped"
	OutcomeRejected = "rejected"
)

// Labels is a simple key:value map for metric dimensions.
type Labels map[string]string

// Recorder captures counters and histograms.
type Recorder interface {
	IncCounter(name string, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// PrometheusHandler returns the standard /metrics handler for the default
// registry.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves metrics gathered from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NoopMetrics is the default recorder.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(_ string, _ Labels)                  {}
func (NoopMetrics) ObserveHistogram(_ string, _ float64, _ Labels) {}

type counter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogram struct {
	vec    *prometheus.HistogramVec
	labels []string
}

// PrometheusRecorder implements Recorder for the names declared above.
// Unknown names are ignored.
type PrometheusRecorder struct {
	counters   map[string]counter
	histograms map[string]histogram
}

// NewPrometheusRecorder registers all collectors on registerer, or on the
// default registerer when nil.
func NewPrometheusRecorder(registerer prometheus.Registerer, buckets []float64) *PrometheusRecorder {
	reg := registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	}
	f := promauto.With(reg)

	httpLabels := []string{"method", "route", "status"}
	p := &PrometheusRecorder{
		counters:   map[string]counter{},
		histograms: map[string]histogram{},
	}
	p.counters[HTTPRequests] = counter{f.NewCounterVec(prometheus.CounterOpts{
		Name: HTTPRequests,
		Help: "Total number of HTTP requests",
	}, httpLabels), httpLabels}
	p.histograms[HTTPDuration] = histogram{f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    HTTPDuration,
		Help:    "HTTP request duration in seconds",
		Buckets: buckets,
	}, httpLabels), httpLabels}
	p.counters[CSRFChecks] = counter{f.NewCounterVec(prometheus.CounterOpts{
		Name: CSRFChecks,
		Help: "CSRF guard decisions by outcome",
	}, []string{"outcome"}), []string{"outcome"}}
	p.counters[GuardFailures] = counter{f.NewCounterVec(prometheus.CounterOpts{
		Name: GuardFailures,
		Help: "Requests rejected by a guard",
	}, []string{"guard"}), []string{"guard"}}
	p.histograms[GuardChainSeconds] = histogram{f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    GuardChainSeconds,
		Help:    "Time spent running the guard chain",
		Buckets: buckets,
	}, nil), nil}
	return p
}

func (p *PrometheusRecorder) IncCounter(name string, labels Labels) {
	if p == nil {
		return
	}
	c, ok := p.counters[name]
	if !ok {
		return
	}
	c.vec.WithLabelValues(values(c.labels, labels)...).Inc()
}

func (p *PrometheusRecorder) ObserveHistogram(name string, value float64, labels Labels) {
	if p == nil {
		return
	}
	h, ok := p.histograms[name]
	if !ok {
		return
	}
	h.vec.WithLabelValues(values(h.labels, labels)...).Observe(value)
}

func values(names []string, labels Labels) []string {
	out := make([]string, len(names))
	for i, n := range names {
		v := labels[n]
		if v == "" {
			v = "unknown"
		}
		out[i] = v
	}
	return out
}

// Middleware instruments HTTP traffic using a provided recorder.
type Middleware struct {
	M Recorder
}

// New constructs a metrics middleware.
func New(m Recorder) *Middleware { return &Middleware{M: m} }

// Handler wraps the next handler to record counters and duration. The route
// label is the chi route pattern, or UnmatchedRoute.
func (mw *Middleware) Handler(next http.Handler) http.Handler {
	if mw.M == nil {
		mw.M = NoopMetrics{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		labels := Labels{
			"method": r.Method,
			"route":  Route(r),
			"status": strconv.Itoa(ww.status),
		}
		mw.M.IncCounter(HTTPRequests, labels)
		mw.M.ObserveHistogram(HTTPDuration, time.Since(start).Seconds(), labels)
	})
}

// Route returns the chi pattern that served r, or UnmatchedRoute.
func Route(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return UnmatchedRoute
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
