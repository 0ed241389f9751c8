// Package csrf implements the CSRF guard: a per-session secret, a fresh
// token per request, and verification of tokens echoed back through a body
// field, a header or an encrypted cookie mirrored into a header.
package csrf

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/aatuh/shield/encryption"
	"github.com/aatuh/shield/guard"
	"github.com/aatuh/shield/logzap"
	"github.com/aatuh/shield/metrics"
	"github.com/aatuh/shield/ports"
	"github.com/aatuh/shield/tokens"
)

const (
	// SessionKey is where the secret lives in the session.
	SessionKey = "csrf-secret"
	// FieldName is the body or query field carrying the token.
	FieldName = "_csrf"
	// HeaderName carries a plain token.
	HeaderName = "X-CSRF-Token"
	// XSRFHeaderName carries the XSRF-TOKEN cookie value as read by scripts.
	XSRFHeaderName = "X-XSRF-Token"
	// CookieName is the script-readable cookie holding the encrypted token.
	CookieName = "XSRF-TOKEN"
	// Purpose binds the cookie ciphertext to its use.
	Purpose = "XSRF-TOKEN"
)

var (
	// ErrSessionRequired is returned when a request reaches the guard
	// without a session.
	ErrSessionRequired = errors.New("csrf: session required")

	// ErrEncrypterRequired is a configuration error for EnableXsrfCookie
	// without an Encrypter.
	ErrEncrypterRequired = errors.New("csrf: encrypter required when the XSRF cookie is enabled")

	// ErrNegativeCookieMaxAge rejects a negative Cookie.MaxAge, which would
	// delete the cookie instead of setting it.
	ErrNegativeCookieMaxAge = errors.New("csrf: cookie max age must not be negative")
)

type tokenKey struct{}

// CookieOptions configures the XSRF-TOKEN cookie. HttpOnly is always off so
// client scripts can read the value.
type CookieOptions struct {
	Path   string
	Domain string
	// MaxAge is the cookie lifetime. Zero takes the default of two hours
	// unless BrowserSession is set.
	MaxAge time.Duration
	// BrowserSession omits Max-Age so the cookie ends with the browser
	// session.
	BrowserSession bool
	Secure         bool
	SameSite       http.SameSite
}

// Options configures the guard.
type Options struct {
	Enabled bool
	// Methods limits verification to these methods. Empty verifies all.
	Methods []string
	// ExceptRoutes lists route patterns that skip verification.
	ExceptRoutes []string
	// Except, when set, replaces ExceptRoutes. Returning true skips
	// verification.
	Except           func(c *guard.Context) bool
	EnableXsrfCookie bool
	Cookie           CookieOptions
}

// DefaultCookieOptions returns the XSRF-TOKEN cookie defaults.
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{Path: "/", MaxAge: 2 * time.Hour, SameSite: http.SameSiteLaxMode}
}

// Deps are the collaborators of the guard. Zero values get defaults, except
// Encrypter which is required only for the XSRF cookie.
type Deps struct {
	Tokens    ports.Tokens
	Encrypter ports.Encrypter
	Logger    ports.Logger
	Metrics   metrics.Recorder
}

type csrfGuard struct {
	opts    Options
	methods []string
	tokens  ports.Tokens
	enc     ports.Encrypter
	log     ports.Logger
	metrics metrics.Recorder
}

// New returns the guard, or guard.Noop when disabled.
func New(opts Options, deps Deps) (guard.Guard, error) {
	if !opts.Enabled {
		return guard.Noop, nil
	}
	if opts.EnableXsrfCookie && deps.Encrypter == nil {
		return nil, ErrEncrypterRequired
	}
	if opts.Cookie.MaxAge < 0 {
		return nil, ErrNegativeCookieMaxAge
	}
	if deps.Tokens == nil {
		deps.Tokens = tokens.New()
	}
	if deps.Logger == nil {
		deps.Logger = logzap.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopMetrics{}
	}
	def := DefaultCookieOptions()
	if opts.Cookie.Path == "" {
		opts.Cookie.Path = def.Path
	}
	switch {
	case opts.Cookie.BrowserSession:
		opts.Cookie.MaxAge = 0
	case opts.Cookie.MaxAge == 0:
		opts.Cookie.MaxAge = def.MaxAge
	}
	if opts.Cookie.SameSite == 0 {
		opts.Cookie.SameSite = def.SameSite
	}

	methods := make([]string, len(opts.Methods))
	for i, m := range opts.Methods {
		methods[i] = strings.ToUpper(m)
	}
	g := &csrfGuard{
		opts:    opts,
		methods: methods,
		tokens:  deps.Tokens,
		enc:     deps.Encrypter,
		log:     deps.Logger,
		metrics: deps.Metrics,
	}
	return g.handle, nil
}

// Token returns the token issued for r by the guard.
func Token(r *http.Request) (string, bool) {
	t, ok := r.Context().Value(tokenKey{}).(string)
	return t, ok && t != ""
}

func (g *csrfGuard) handle(c *guard.Context) error {
	if c.Session == nil {
		return ErrSessionRequired
	}
	secret, err := g.secret(c.Session)
	if err != nil {
		return err
	}

	if g.shouldVerify(c) {
		candidate, in := g.tokenFromRequest(c.Request)
		if candidate == "" || !g.tokens.Verify(secret, candidate) {
			g.metrics.IncCounter(metrics.CSRFChecks, metrics.Labels{"outcome": metrics.OutcomeRejected})
			return &TokenError{input: in}
		}
		g.metrics.IncCounter(metrics.CSRFChecks, metrics.Labels{"outcome": metrics.OutcomeVerified})
	} else {
		g.metrics.IncCounter(metrics.CSRFChecks, metrics.Labels{"outcome": metrics.OutcomeSkipped})
	}

	token := g.tokens.Create(secret)
	c.SetValue(tokenKey{}, token)

	if g.opts.EnableXsrfCookie {
		if err := g.setCookie(c.Response, token); err != nil {
			return err
		}
	}
	if c.View != nil {
		shareLocals(c.View, token)
	}
	return nil
}

// secret returns the session secret, creating and storing one when absent.
func (g *csrfGuard) secret(s ports.Session) (string, error) {
	if v, ok := s.Get(SessionKey); ok {
		if secret, ok := v.(string); ok && secret != "" {
			return secret, nil
		}
	}
	g.log.Debug("csrf: generating new secret")
	secret, err := g.tokens.Secret()
	if err != nil {
		return "", err
	}
	s.Put(SessionKey, secret)
	return secret, nil
}

func (g *csrfGuard) shouldVerify(c *guard.Context) bool {
	if len(g.methods) > 0 && !containsFold(g.methods, c.Request.Method) {
		g.log.Debug("csrf: ignoring request method", "method", c.Request.Method)
		return false
	}
	if g.opts.Except != nil {
		return !g.opts.Except(c)
	}
	for _, route := range g.opts.ExceptRoutes {
		if route == c.Route {
			g.log.Debug("csrf: ignoring route", "route", c.Route)
			return false
		}
	}
	return true
}

// tokenFromRequest checks the body field, then the plain header, then the
// encrypted header. It also returns the request input for recovery.
func (g *csrfGuard) tokenFromRequest(r *http.Request) (string, map[string]any) {
	in := readInput(r)
	if v, ok := in[FieldName].(string); ok && v != "" {
		g.log.Debug("csrf: token read from input", "field", FieldName)
		return v, in
	}
	if v := r.Header.Get(HeaderName); v != "" {
		g.log.Debug("csrf: token read from header", "header", HeaderName)
		return v, in
	}
	if !g.opts.EnableXsrfCookie {
		return "", in
	}
	raw := r.Header.Get(XSRFHeaderName)
	if raw == "" {
		return "", in
	}
	g.log.Debug("csrf: token read from header", "header", XSRFHeaderName)
	ciphertext, ok := encryption.DecodeCookieValue(raw)
	if !ok {
		return "", in
	}
	token, err := g.enc.Decrypt(ciphertext, Purpose)
	if err != nil {
		g.log.Debug("csrf: undecryptable xsrf header", "err", err)
		return "", in
	}
	return token, in
}

func (g *csrfGuard) setCookie(w http.ResponseWriter, token string) error {
	ciphertext, err := g.enc.Encrypt(token, Purpose)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encryption.EncodeCookieValue(ciphertext),
		Path:     g.opts.Cookie.Path,
		Domain:   g.opts.Cookie.Domain,
		MaxAge:   int(g.opts.Cookie.MaxAge.Seconds()),
		Secure:   g.opts.Cookie.Secure,
		HttpOnly: false,
		SameSite: g.opts.Cookie.SameSite,
	})
	return nil
}

func shareLocals(v ports.ViewLocals, token string) {
	escaped := template.HTMLEscapeString(token)
	v.Share(map[string]any{
		"csrfToken": token,
		"csrfMeta": func() template.HTML {
			return template.HTML("<meta name='csrf-token' content='" + escaped + "'>")
		},
		"csrfField": func() template.HTML {
			return template.HTML("<input type='hidden' name='" + FieldName + "' value='" + escaped + "'>")
		},
	})
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
