// Package ratelimit throttles state-changing requests per client with a
// token bucket. Safe methods pass through untouched.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aatuh/shield/clock"
	"github.com/aatuh/shield/httpx"
	"github.com/aatuh/shield/ports"
)

type KeyFn func(*http.Request) string

type Options struct {
	Capacity   float64 // tokens
	RefillRate float64 // tokens per second
	Key        KeyFn
	// Methods are limited. Defaults to POST, PUT, PATCH and DELETE.
	Methods []string
	// IdleTTL drops buckets not seen for this long.
	IdleTTL time.Duration
	Clock   ports.Clock
}

type Middleware struct {
	opts    Options
	methods map[string]bool
	mu      sync.Mutex
	m       map[string]*bucket
	swept   time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

func New(opts Options) *Middleware {
	if opts.Capacity <= 0 {
		opts.Capacity = 20
	}
	if opts.RefillRate <= 0 {
		opts.RefillRate = 10
	}
	if opts.Key == nil {
		opts.Key = RemoteHost
	}
	if len(opts.Methods) == 0 {
		opts.Methods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystemClock()
	}
	methods := make(map[string]bool, len(opts.Methods))
	for _, m := range opts.Methods {
		methods[strings.ToUpper(m)] = true
	}
	return &Middleware{opts: opts, methods: methods, m: make(map[string]*bucket)}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.methods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}
		if wait, ok := m.take(m.opts.Key(r)); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds()+0.999)))
			httpx.WriteSimpleProblem(w, http.StatusTooManyRequests,
				http.StatusText(http.StatusTooManyRequests), "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take consumes one token. On refusal it returns the time until the next
// token is available.
func (m *Middleware) take(key string) (time.Duration, bool) {
	now := m.opts.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.swept) > m.opts.IdleTTL {
		for k, b := range m.m {
			if now.Sub(b.lastSeen) > m.opts.IdleTTL {
				delete(m.m, k)
			}
		}
		m.swept = now
	}

	b := m.m[key]
	if b == nil {
		b = &bucket{tokens: m.opts.Capacity, lastSeen: now}
		m.m[key] = b
	}
	b.tokens += now.Sub(b.lastSeen).Seconds() * m.opts.RefillRate
	if b.tokens > m.opts.Capacity {
		b.tokens = m.opts.Capacity
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return time.Duration((1 - b.tokens) / m.opts.RefillRate * float64(time.Second)), false
	}
	b.tokens--
	return 0, true
}

// Buckets reports how many clients are tracked.
func (m *Middleware) Buckets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

// RemoteHost keys by the host part of RemoteAddr. Put it behind RealIP when
// running behind a proxy.
func RemoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
