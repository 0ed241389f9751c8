// Package xssprotection sets X-XSS-Protection for browsers that still
// implement the filter.
package xssprotection

import (
	"regexp"
	"strconv"

	"github.com/aatuh/shield/guard"
)

const HeaderName = "X-XSS-Protection"

var msieRe = regexp.MustCompile(`(?i)msie\s*(\d{1,2})`)

type Options struct {
	Enabled bool
	// DisableBlockMode drops "mode=block".
	DisableBlockMode bool
	ReportURI        string
	// EnableOnOldIE sends the filter header to IE below 9, where the
	// filter itself is exploitable. Those browsers get "0" otherwise.
	EnableOnOldIE bool
}

func New(opts Options) guard.Guard {
	if !opts.Enabled {
		return guard.Noop
	}
	value := "1"
	if !opts.DisableBlockMode {
		value += "; mode=block"
	}
	if opts.ReportURI != "" {
		value += "; report=" + opts.ReportURI
	}
	return func(c *guard.Context) error {
		v := value
		if !opts.EnableOnOldIE && isOldIE(c.Request.UserAgent()) {
			v = "0"
		}
		c.Response.Header().Set(HeaderName, v)
		return nil
	}
}

func isOldIE(ua string) bool {
	m := msieRe.FindStringSubmatch(ua)
	if m == nil {
		return false
	}
	v, err := strconv.Atoi(m[1])
	return err == nil && v < 9
}
