// Package dnsprefetch controls browser DNS prefetching.
package dnsprefetch

import "github.com/aatuh/shield/guard"

const HeaderName = "X-DNS-Prefetch-Control"

type Options struct {
	Enabled bool
	Allow   bool
}

func New(opts Options) guard.Guard {
	if !opts.Enabled {
		return guard.Noop
	}
	value := "off"
	if opts.Allow {
		value = "on"
	}
	return func(c *guard.Context) error {
		c.Response.Header().Set(HeaderName, value)
		return nil
	}
}
