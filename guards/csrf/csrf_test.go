package csrf

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aatuh/shield/encryption"
	"github.com/aatuh/shield/guard"
	"github.com/aatuh/shield/metrics"
	"github.com/aatuh/shield/tokens"
	"github.com/aatuh/shield/view"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	data    map[string]any
	flashes map[string]any
	puts    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{data: map[string]any{}, flashes: map[string]any{}}
}

func (s *fakeSession) Get(k string) (any, bool) {
	v, ok := s.data[k]
	return v, ok
}

func (s *fakeSession) Put(k string, v any) {
	s.puts++
	s.data[k] = v
}

func (s *fakeSession) Flash(k string, v any) { s.flashes[k] = v }

func (s *fakeSession) secret() string {
	v, _ := s.data[SessionKey].(string)
	return v
}

func newContext(s *fakeSession, method, target string, body io.Reader) (*guard.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, target, body)
	c := &guard.Context{Response: w, Request: r, Route: r.URL.Path}
	if s != nil {
		c.Session = s
	}
	return c, w
}

func newEncrypter(t *testing.T) *encryption.Encrypter {
	t.Helper()
	enc, err := encryption.NewFromAppKey("an-application-key-of-some-length")
	require.NoError(t, err)
	return enc
}

func mustGuard(t *testing.T, opts Options, deps Deps) guard.Guard {
	t.Helper()
	opts.Enabled = true
	g, err := New(opts, deps)
	require.NoError(t, err)
	return g
}

// issue runs a GET so the session holds a secret, and returns the token
// issued for it. The guard must not verify GET requests.
func issue(t *testing.T, g guard.Guard, s *fakeSession) (string, *httptest.ResponseRecorder) {
	t.Helper()
	c, w := newContext(s, http.MethodGet, "/form", nil)
	require.NoError(t, g(c))
	tok, ok := Token(c.Request)
	require.True(t, ok)
	return tok, w
}

func TestPostWithoutTokenIsRejected(t *testing.T) {
	g := mustGuard(t, Options{}, Deps{})
	c, _ := newContext(newFakeSession(), http.MethodPost, "/", nil)

	err := g(c)

	var te *TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "E_BAD_CSRF_TOKEN", te.Code())
	assert.Equal(t, http.StatusForbidden, te.Status())
	assert.Equal(t, "Invalid or expired CSRF token", te.Error())
	_, issued := Token(c.Request)
	assert.False(t, issued)
}

func TestSecretIsCreatedOnceAndReused(t *testing.T) {
	g := mustGuard(t, Options{Methods: []string{"POST"}}, Deps{})
	s := newFakeSession()

	issue(t, g, s)
	first := s.secret()
	require.NotEmpty(t, first)
	assert.Equal(t, 1, s.puts)

	issue(t, g, s)
	assert.Equal(t, first, s.secret())
	assert.Equal(t, 1, s.puts)
}

func TestVerificationNeverChangesSecret(t *testing.T) {
	g := mustGuard(t, Options{}, Deps{})
	s := newFakeSession()
	c, _ := newContext(s, http.MethodPost, "/", nil)
	require.Error(t, g(c))
	secret := s.secret()

	c, _ = newContext(s, http.MethodPost, "/", nil)
	c.Request.Header.Set(HeaderName, "bogus-token")
	require.Error(t, g(c))
	assert.Equal(t, secret, s.secret())

	good := tokens.New().Create(secret)
	c, _ = newContext(s, http.MethodPost, "/", nil)
	c.Request.Header.Set(HeaderName, good)
	require.NoError(t, g(c))
	assert.Equal(t, secret, s.secret())
	assert.Equal(t, 1, s.puts)
}

func TestMethodsOutsideAllowListSkipVerification(t *testing.T) {
	g := mustGuard(t, Options{Methods: []string{"post", "PUT"}}, Deps{})
	s := newFakeSession()
	c, _ := newContext(s, http.MethodGet, "/", nil)
	c.Request.Header.Set(HeaderName, "garbage")

	require.NoError(t, g(c))
	tok, ok := Token(c.Request)
	require.True(t, ok)
	assert.True(t, tokens.New().Verify(s.secret(), tok))

	c, _ = newContext(s, http.MethodPost, "/", nil)
	assert.Error(t, g(c))
}

func TestExceptRoutesList(t *testing.T) {
	g := mustGuard(t, Options{ExceptRoutes: []string{"/"}}, Deps{})
	s := newFakeSession()
	c, _ := newContext(s, http.MethodGet, "/", nil)

	require.NoError(t, g(c))
	tok, ok := Token(c.Request)
	require.True(t, ok)
	assert.True(t, tokens.New().Verify(s.secret(), tok))

	c, _ = newContext(s, http.MethodGet, "/other", nil)
	assert.Error(t, g(c))
}

func TestExceptPredicateTakesPrecedence(t *testing.T) {
	var seen string
	g := mustGuard(t, Options{
		ExceptRoutes: []string{"/webhooks"},
		Except: func(c *guard.Context) bool {
			seen = c.Route
			return strings.HasPrefix(c.Route, "/api/")
		},
	}, Deps{})

	c, _ := newContext(newFakeSession(), http.MethodPost, "/api/items", nil)
	require.NoError(t, g(c))
	assert.Equal(t, "/api/items", seen)

	c, _ = newContext(newFakeSession(), http.MethodPost, "/webhooks", nil)
	assert.Error(t, g(c))
}

var postOnly = []string{http.MethodPost}

func TestTokenSources(t *testing.T) {
	g := mustGuard(t, Options{Methods: postOnly}, Deps{})

	tests := []struct {
		name  string
		build func(tok string) *http.Request
	}{
		{"form field", func(tok string) *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(url.Values{FieldName: {tok}}.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r
		}},
		{"query field", func(tok string) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/?_csrf="+url.QueryEscape(tok), nil)
		}},
		{"json field", func(tok string) *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"_csrf":"`+tok+`"}`))
			r.Header.Set("Content-Type", "application/json; charset=utf-8")
			return r
		}},
		{"csrf header", func(tok string) *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.Header.Set("x-csrf-token", tok)
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSession()
			tok, _ := issue(t, g, s)
			c := &guard.Context{Response: httptest.NewRecorder(), Request: tt.build(tok), Session: s, Route: "/"}
			assert.NoError(t, g(c))
		})
	}
}

func TestBodyFieldWinsOverHeader(t *testing.T) {
	g := mustGuard(t, Options{Methods: postOnly}, Deps{})
	s := newFakeSession()
	tok, _ := issue(t, g, s)

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(url.Values{FieldName: {"bad-value"}}.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set(HeaderName, tok)
	c := &guard.Context{Response: httptest.NewRecorder(), Request: r, Session: s, Route: "/"}

	assert.Error(t, g(c))
}

func TestJSONBodyIsRestored(t *testing.T) {
	g := mustGuard(t, Options{Methods: postOnly}, Deps{})
	s := newFakeSession()
	tok, _ := issue(t, g, s)
	body := `{"_csrf":"` + tok + `","name":"ada"}`

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	c := &guard.Context{Response: httptest.NewRecorder(), Request: r, Session: s, Route: "/"}
	require.NoError(t, g(c))

	got, err := io.ReadAll(c.Request.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestXsrfCookieRoundTrip(t *testing.T) {
	enc := newEncrypter(t)
	g := mustGuard(t, Options{Methods: postOnly, EnableXsrfCookie: true}, Deps{Encrypter: enc})
	s := newFakeSession()

	tok, w := issue(t, g, s)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	ck := cookies[0]
	assert.Equal(t, CookieName, ck.Name)
	assert.False(t, ck.HttpOnly)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, 7200, ck.MaxAge)
	assert.True(t, strings.HasPrefix(ck.Value, "e%3A"))

	ciphertext, ok := encryption.DecodeCookieValue(ck.Value)
	require.True(t, ok)
	plain, err := enc.Decrypt(ciphertext, Purpose)
	require.NoError(t, err)
	assert.Equal(t, tok, plain)

	c, _ := newContext(s, http.MethodPost, "/", nil)
	c.Request.Header.Set("X-XSRF-TOKEN", ck.Value)
	assert.NoError(t, g(c))

	disabled := mustGuard(t, Options{Methods: postOnly}, Deps{Encrypter: enc})
	c, _ = newContext(s, http.MethodPost, "/", nil)
	c.Request.Header.Set("X-XSRF-TOKEN", ck.Value)
	var te *TokenError
	assert.ErrorAs(t, disabled(c), &te)
}

func TestXsrfCookieLifetime(t *testing.T) {
	enc := newEncrypter(t)

	g := mustGuard(t, Options{Methods: postOnly, EnableXsrfCookie: true,
		Cookie: CookieOptions{BrowserSession: true, MaxAge: time.Hour}}, Deps{Encrypter: enc})
	_, w := issue(t, g, newFakeSession())
	raw := w.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(raw, CookieName+"="))
	assert.NotContains(t, raw, "Max-Age")

	g = mustGuard(t, Options{Methods: postOnly, EnableXsrfCookie: true,
		Cookie: CookieOptions{MaxAge: 10 * time.Minute}}, Deps{Encrypter: enc})
	_, w = issue(t, g, newFakeSession())
	require.Len(t, w.Result().Cookies(), 1)
	assert.Equal(t, 600, w.Result().Cookies()[0].MaxAge)

	_, err := New(Options{Enabled: true, EnableXsrfCookie: true,
		Cookie: CookieOptions{MaxAge: -time.Second}}, Deps{Encrypter: enc})
	assert.ErrorIs(t, err, ErrNegativeCookieMaxAge)
}

func TestXsrfHeaderRejectsTamperedOrUnprefixed(t *testing.T) {
	enc := newEncrypter(t)
	g := mustGuard(t, Options{Methods: postOnly, EnableXsrfCookie: true}, Deps{Encrypter: enc})
	s := newFakeSession()
	tok, _ := issue(t, g, s)

	wrongPurpose, err := enc.Encrypt(tok, "other")
	require.NoError(t, err)
	plain, err := enc.Encrypt(tok, Purpose)
	require.NoError(t, err)

	for _, v := range []string{
		"e%3Anot-a-ciphertext",
		encryption.EncodeCookieValue(wrongPurpose),
		url.QueryEscape(plain),
	} {
		c, _ := newContext(s, http.MethodPost, "/", nil)
		c.Request.Header.Set(XSRFHeaderName, v)
		assert.Error(t, g(c), v)
	}
}

func TestSharesViewLocals(t *testing.T) {
	g := mustGuard(t, Options{Methods: []string{"POST"}}, Deps{})
	locals := view.NewLocals()
	c, _ := newContext(newFakeSession(), http.MethodGet, "/", nil)
	c.View = locals

	require.NoError(t, g(c))
	tok, _ := Token(c.Request)
	v := locals.Values()

	assert.Equal(t, tok, v["csrfToken"])
	meta := v["csrfMeta"].(func() template.HTML)()
	field := v["csrfField"].(func() template.HTML)()
	assert.Equal(t, template.HTML("<meta name='csrf-token' content='"+tok+"'>"), meta)
	assert.Equal(t, template.HTML("<input type='hidden' name='_csrf' value='"+tok+"'>"), field)
}

func TestRecoverFlashesAndRedirectsBack(t *testing.T) {
	g := mustGuard(t, Options{}, Deps{})
	s := newFakeSession()
	form := url.Values{
		"email":                 {"a@example.com"},
		"tags":                  {"x", "y"},
		"_csrf":                 {"stale"},
		"_method":               {"PUT"},
		"password":              {"hunter2"},
		"password_confirmation": {"hunter2"},
	}
	r := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Referer", "/profile/edit")
	w := httptest.NewRecorder()
	c := &guard.Context{Response: w, Request: r, Session: s, Route: "/profile"}

	err := g(c)
	var rec guard.Recoverer
	require.True(t, errors.As(err, &rec))
	rec.Recover(c)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/edit", w.Header().Get("Location"))
	want := map[string]any{
		"old":    map[string]any{"email": "a@example.com", "tags": []string{"x", "y"}},
		"errors": map[string]any{Code: Message},
	}
	if diff := cmp.Diff(want, s.flashes); diff != "" {
		t.Fatalf("flashes mismatch (-want +got):\n%s", diff)
	}
}

func TestRecoverDefaultsToRoot(t *testing.T) {
	c, w := newContext(newFakeSession(), http.MethodPost, "/x", nil)
	(&TokenError{}).Recover(c)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestConstruction(t *testing.T) {
	g, err := New(Options{Enabled: false}, Deps{})
	require.NoError(t, err)
	c, _ := newContext(nil, http.MethodPost, "/", nil)
	require.NoError(t, g(c))
	_, issued := Token(c.Request)
	assert.False(t, issued)

	_, err = New(Options{Enabled: true, EnableXsrfCookie: true}, Deps{})
	assert.ErrorIs(t, err, ErrEncrypterRequired)
}

func TestSessionRequired(t *testing.T) {
	g := mustGuard(t, Options{}, Deps{})
	c, _ := newContext(nil, http.MethodGet, "/", nil)
	assert.ErrorIs(t, g(c), ErrSessionRequired)
}

type outcomes []string

func (o *outcomes) IncCounter(name string, l metrics.Labels) {
	if name == metrics.CSRFChecks {
		*o = append(*o, l["outcome"])
	}
}

func (o *outcomes) ObserveHistogram(string, float64, metrics.Labels) {}

func TestRecordsOutcomes(t *testing.T) {
	var got outcomes
	g := mustGuard(t, Options{Methods: postOnly}, Deps{Metrics: &got})
	s := newFakeSession()

	tok, _ := issue(t, g, s)
	c, _ := newContext(s, http.MethodPost, "/", nil)
	c.Request.Header.Set(HeaderName, tok)
	require.NoError(t, g(c))
	c, _ = newContext(s, http.MethodPost, "/", nil)
	require.Error(t, g(c))

	assert.Equal(t, outcomes{metrics.OutcomeSkipped, metrics.OutcomeVerified, metrics.OutcomeRejected}, got)
}
