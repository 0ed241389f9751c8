// Package noopen keeps old Internet Explorer from opening downloads in the
// site's context.
package noopen

import "github.com/aatuh/shield/guard"

const HeaderName = "X-Download-Options"

type Options struct {
	Enabled bool
}

func New(opts Options) guard.Guard {
	if !opts.Enabled {
		return guard.Noop
	}
	return func(c *guard.Context) error {
		c.Response.Header().Set(HeaderName, "noopen")
		return nil
	}
}
