// Package nosniff stops browsers from guessing content types.
package nosniff

import "github.com/aatuh/shield/guard"

const HeaderName = "X-Content-Type-Options"

type Options struct {
	Enabled bool
}

func New(opts Options) guard.Guard {
	if !opts.Enabled {
		return guard.Noop
	}
	return func(c *guard.Context) error {
		c.Response.Header().Set(HeaderName, "nosniff")
		return nil
	}
}
