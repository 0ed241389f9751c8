package clock

import (
	"sync"
	"time"

	"github.com/aatuh/shield/ports"
)

// SystemClock implements ports.Clock using time.Now().
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// NewSystemClock creates a new system clock that implements ports.Clock.
func NewSystemClock() ports.Clock {
	return &SystemClock{}
}

// ManualClock is a settable clock for session expiry tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a manual clock at t.
func NewManualClock(t time.Time) *ManualClock { return &ManualClock{now: t} }

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
