// Package csp sets Content-Security-Policy headers built from ordered
// directives. Registered keywords such as @nonce are resolved per request.
package csp

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aatuh/shield/guard"
)

const (
	HeaderName           = "Content-Security-Policy"
	ReportOnlyHeaderName = "Content-Security-Policy-Report-Only"
)

type nonceKey struct{}

// Options configures the guard.
type Options struct {
	Enabled     bool
	Directives  []Directive
	ReportOnly  bool
	UseDefaults bool
}

// part is either a literal value or a keyword resolver.
type part struct {
	literal string
	resolve Resolver
}

type compiled struct {
	name  string
	parts []part
}

// New validates the directives, substitutes registered keywords and
// returns the guard. A nil registry means DefaultKeywords.
func New(opts Options, kw *Keywords) (guard.Guard, error) {
	if !opts.Enabled {
		return guard.Noop, nil
	}
	if kw == nil {
		kw = DefaultKeywords()
	}
	kw = kw.clone()

	directives, err := normalize(opts.Directives, opts.UseDefaults)
	if err != nil {
		return nil, err
	}
	policy := compile(directives, kw)
	header := HeaderName
	if opts.ReportOnly {
		header = ReportOnlyHeaderName
	}

	return func(c *guard.Context) error {
		nonce, err := newNonce()
		if err != nil {
			return err
		}
		c.SetValue(nonceKey{}, nonce)
		if c.View != nil {
			c.View.Share(map[string]any{"cspNonce": nonce})
		}
		if len(policy) > 0 {
			c.Response.Header().Set(header, render(policy, c))
		}
		return nil
	}, nil
}

// Nonce returns the nonce generated for r.
func Nonce(r *http.Request) (string, bool) {
	n, ok := r.Context().Value(nonceKey{}).(string)
	return n, ok
}

func compile(directives []Directive, kw *Keywords) []compiled {
	out := make([]compiled, len(directives))
	for i, d := range directives {
		parts := make([]part, len(d.Values))
		for j, v := range d.Values {
			if r, ok := kw.lookup(v); ok {
				parts[j] = part{resolve: r}
			} else {
				parts[j] = part{literal: v}
			}
		}
		out[i] = compiled{name: d.Name, parts: parts}
	}
	return out
}

func render(policy []compiled, c *guard.Context) string {
	var b strings.Builder
	for i, d := range policy {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(d.name)
		for _, p := range d.parts {
			b.WriteByte(' ')
			if p.resolve != nil {
				b.WriteString(p.resolve(c))
			} else {
				b.WriteString(p.literal)
			}
		}
	}
	return b.String()
}

// newNonce returns 16 URL-safe characters.
func newNonce() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
