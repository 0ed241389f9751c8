// Package health serves liveness and readiness probes. Readiness verifies
// that the session store accepts writes, since no protected request can be
// served without it.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aatuh/shield/httpx"
	"github.com/aatuh/shield/idgen"
	"github.com/aatuh/shield/ports"
)

const (
	LivezPath  = "/livez"
	ReadyzPath = "/readyz"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Checker is one readiness dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func (c funcChecker) Name() string                    { return c.name }
func (c funcChecker) Check(ctx context.Context) error { return c.fn(ctx) }

// NewChecker adapts a function such as pgxpool.Pool.Ping.
func NewChecker(name string, fn func(ctx context.Context) error) Checker {
	return funcChecker{name: name, fn: fn}
}

// SessionStoreChecker saves, loads and destroys a probe session.
func SessionStoreChecker(store ports.SessionStore) Checker {
	ids := idgen.NewULIDGen()
	return NewChecker("sessions", func(ctx context.Context) error {
		id := "health-" + ids.New()
		if err := store.Save(ctx, id, []byte(`{"data":{}}`), time.Minute); err != nil {
			return err
		}
		defer func() { _ = store.Destroy(ctx, id) }()
		raw, err := store.Load(ctx, id)
		if err != nil {
			return err
		}
		if raw == nil {
			return fmt.Errorf("probe session %s not readable", id)
		}
		return nil
	})
}

// Result is the probe response body.
type Result struct {
	Status    Status            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler runs checkers for the readiness probe.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
	clock    ports.Clock
	log      ports.Logger
}

func NewHandler(timeout time.Duration, clock ports.Clock, log ports.Logger, checkers ...Checker) *Handler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Handler{checkers: checkers, timeout: timeout, clock: clock, log: log}
}

// Readiness runs every checker under one timeout.
func (h *Handler) Readiness(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	res := Result{Status: StatusHealthy, Checks: map[string]string{}, Timestamp: h.clock.Now()}
	for _, c := range h.checkers {
		if err := c.Check(ctx); err != nil {
			h.log.Warn("health: check failed", "check", c.Name(), "err", err)
			res.Status = StatusUnhealthy
			res.Checks[c.Name()] = err.Error()
			continue
		}
		res.Checks[c.Name()] = string(StatusHealthy)
	}
	return res
}

func (h *Handler) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, Result{Status: StatusHealthy, Timestamp: h.clock.Now()})
}

func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	res := h.Readiness(r.Context())
	status := http.StatusOK
	if res.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, res)
}

// RegisterRoutes mounts both probes.
func (h *Handler) RegisterRoutes(r ports.HTTPRouter) {
	r.Get(LivezPath, h.LivenessHandler)
	r.Get(ReadyzPath, h.ReadinessHandler)
}
