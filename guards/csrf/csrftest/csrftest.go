// Package csrftest lets tests send state-changing requests through the CSRF
// guard without first scraping a token from a rendered page. It seeds a
// session holding a fresh secret and signs the request with a token for it.
package csrftest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aatuh/shield/guards/csrf"
	"github.com/aatuh/shield/idgen"
	"github.com/aatuh/shield/ports"
	"github.com/aatuh/shield/session"
	"github.com/aatuh/shield/tokens"
)

// Seed stores a new session holding a CSRF secret and returns the session
// id with a token valid for it. tk must match the Tokens the guard uses;
// nil means tokens.New(). A zero ttl takes the session default.
func Seed(ctx context.Context, store ports.SessionStore, tk ports.Tokens, ttl time.Duration) (id, token string, err error) {
	if tk == nil {
		tk = tokens.New()
	}
	if ttl <= 0 {
		ttl = session.DefaultOptions().TTL
	}
	secret, err := tk.Secret()
	if err != nil {
		return "", "", err
	}
	s := session.New(idgen.NewULIDGen().New())
	s.Put(csrf.SessionKey, secret)
	if err := session.Save(ctx, store, s, ttl); err != nil {
		return "", "", err
	}
	return s.ID(), tk.Create(secret), nil
}

// WithToken returns a copy of r carrying a seeded session under the
// default session cookie and the matching X-CSRF-Token header. A session
// cookie already on r is replaced.
func WithToken(tb testing.TB, r *http.Request, store ports.SessionStore) *http.Request {
	tb.Helper()
	return WithTokenCookie(tb, r, store, session.DefaultOptions().CookieName)
}

// WithTokenCookie is WithToken for managers using another cookie name.
func WithTokenCookie(tb testing.TB, r *http.Request, store ports.SessionStore, cookieName string) *http.Request {
	tb.Helper()
	id, token, err := Seed(r.Context(), store, nil, 0)
	if err != nil {
		tb.Fatalf("csrftest: seed session: %v", err)
	}

	out := r.Clone(r.Context())
	out.Header.Del("Cookie")
	for _, c := range r.Cookies() {
		if c.Name != cookieName {
			out.AddCookie(c)
		}
	}
	out.AddCookie(&http.Cookie{Name: cookieName, Value: id})
	out.Header.Set(csrf.HeaderName, token)
	return out
}
