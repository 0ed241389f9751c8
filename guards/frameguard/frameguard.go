// Package frameguard sets X-Frame-Options to control framing.
package frameguard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aatuh/shield/guard"
)

const HeaderName = "X-Frame-Options"

var (
	ErrUnknownAction  = errors.New(`frameguard: action must be one of "DENY", "ALLOW-FROM" or "SAMEORIGIN"`)
	ErrDomainRequired = errors.New(`frameguard: domain is required when using action "ALLOW-FROM"`)
)

// Action is one of Deny, SameOrigin or AllowFrom.
type Action interface {
	value() string
}

type Deny struct{}

type SameOrigin struct{}

type AllowFrom struct {
	Domain string
}

func (Deny) value() string        { return "DENY" }
func (SameOrigin) value() string  { return "SAMEORIGIN" }
func (a AllowFrom) value() string { return "ALLOW-FROM " + a.Domain }

// ParseAction maps configuration strings to an Action. An empty action is
// SameOrigin; domain is used only by ALLOW-FROM.
func ParseAction(action, domain string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case "", "SAMEORIGIN":
		return SameOrigin{}, nil
	case "DENY":
		return Deny{}, nil
	case "ALLOW-FROM":
		if domain == "" {
			return nil, ErrDomainRequired
		}
		return AllowFrom{Domain: domain}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

type Options struct {
	Enabled bool
	// Action defaults to SameOrigin.
	Action Action
}

func New(opts Options) (guard.Guard, error) {
	if !opts.Enabled {
		return guard.Noop, nil
	}
	action := opts.Action
	if action == nil {
		action = SameOrigin{}
	}
	if a, ok := action.(AllowFrom); ok && a.Domain == "" {
		return nil, ErrDomainRequired
	}
	value := action.value()
	return func(c *guard.Context) error {
		c.Response.Header().Set(HeaderName, value)
		return nil
	}, nil
}
