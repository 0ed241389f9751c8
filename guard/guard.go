// Package guard defines the request context guards operate on and the
// ordered chain that runs them.
package guard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aatuh/shield/ports"
)

// Context is the per-request state handed to every guard. Guards that
// attach values replace Request through SetValue, so callers must read
// Request after the chain has run.
type Context struct {
	Response http.ResponseWriter
	Request  *http.Request
	// Session is nil when no session middleware ran.
	Session ports.Session
	// View is nil when no rendering capability is configured.
	View ports.ViewLocals
	// Route is the matched route pattern, or the request path when unknown.
	Route string
}

// SetValue attaches val to the request context under key.
func (c *Context) SetValue(key, val any) {
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), key, val))
}

// Guard inspects or mutates one request. A non-nil error aborts the chain.
type Guard func(c *Context) error

// Noop is returned by factories for disabled guards.
func Noop(*Context) error { return nil }

// Entry is a named guard in a chain.
type Entry struct {
	Name  string
	Guard Guard
}

// Chain runs guards in a fixed order built once at startup.
type Chain struct {
	entries []Entry
}

func NewChain(entries ...Entry) *Chain {
	return &Chain{entries: append([]Entry(nil), entries...)}
}

// Names lists the guards in execution order.
func (ch *Chain) Names() []string {
	out := make([]string, len(ch.entries))
	for i, e := range ch.entries {
		out[i] = e.Name
	}
	return out
}

// Run invokes each guard in order and stops at the first failure.
func (ch *Chain) Run(c *Context) error {
	for _, e := range ch.entries {
		if err := e.Guard(c); err != nil {
			return &Failure{Guard: e.Name, Err: err}
		}
	}
	return nil
}

// Failure records which guard rejected a request.
type Failure struct {
	Guard string
	Err   error
}

func (f *Failure) Error() string { return fmt.Sprintf("guard %s: %v", f.Guard, f.Err) }
func (f *Failure) Unwrap() error { return f.Err }

// HTTPError is implemented by request errors that map to a status code.
type HTTPError interface {
	error
	Status() int
	Code() string
}

// Recoverer is implemented by errors that know how to answer the request
// themselves, such as redirecting back with flashed input.
type Recoverer interface {
	Recover(c *Context)
}
