// Package hsts sets the Strict-Transport-Security header.
package hsts

import (
	"errors"
	"strconv"

	"github.com/aatuh/shield/guard"
)

const HeaderName = "Strict-Transport-Security"

// DefaultMaxAge is 180 days in seconds.
const DefaultMaxAge = 180 * 24 * 60 * 60

var (
	ErrNegativeMaxAge = errors.New("hsts: max age cannot be negative")
	ErrInvalidMaxAge  = errors.New("hsts: invalid max age expression")
)

// MaxAge is either a number of seconds or a duration expression. The zero
// value means DefaultMaxAge.
type MaxAge struct {
	set     bool
	seconds int64
	expr    string
}

// Seconds is emitted as given.
func Seconds(n int64) MaxAge { return MaxAge{set: true, seconds: n} }

// Expr is parsed by ParseMillis and the resulting millisecond count is
// emitted, so Expr("1s") yields max-age=1000.
func Expr(s string) MaxAge { return MaxAge{set: true, expr: s} }

func (m MaxAge) resolve() (int64, error) {
	if !m.set {
		return DefaultMaxAge, nil
	}
	v := m.seconds
	if m.expr != "" {
		ms, err := ParseMillis(m.expr)
		if err != nil {
			return 0, err
		}
		v = int64(ms)
	}
	if v < 0 {
		return 0, ErrNegativeMaxAge
	}
	return v, nil
}

type Options struct {
	Enabled           bool
	MaxAge            MaxAge
	IncludeSubDomains bool
	Preload           bool
}

// New resolves the header value once; invalid max ages fail here.
func New(opts Options) (guard.Guard, error) {
	if !opts.Enabled {
		return guard.Noop, nil
	}
	maxAge, err := opts.MaxAge.resolve()
	if err != nil {
		return nil, err
	}
	value := "max-age=" + strconv.FormatInt(maxAge, 10)
	if opts.IncludeSubDomains {
		value += "; includeSubDomains"
	}
	if opts.Preload {
		value += "; preload"
	}
	return func(c *guard.Context) error {
		c.Response.Header().Set(HeaderName, value)
		return nil
	}, nil
}
