// Package session provides cookie-identified sessions backed by a
// ports.SessionStore. The CSRF guard keeps its per-session secret here and
// the default CSRF error recovery flashes input and errors through it.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aatuh/shield/clock"
	"github.com/aatuh/shield/idgen"
	"github.com/aatuh/shield/logzap"
	"github.com/aatuh/shield/ports"
)

type ctxKey struct{}

// Session holds the values of one session for the duration of a request.
// It is not safe for concurrent use; a request owns its session.
type Session struct {
	id      string
	isNew   bool
	data    map[string]any
	flashed map[string]any // written by the previous request
	flash   map[string]any // written by this request
	dirty   bool
	savedAt time.Time
}

var _ ports.Session = (*Session)(nil)

type payload struct {
	Data    map[string]any `json:"data"`
	Flash   map[string]any `json:"flash,omitempty"`
	SavedAt int64          `json:"saved_at,omitempty"`
}

func newSession(id string) *Session {
	return &Session{id: id, isNew: true, data: map[string]any{}, flash: map[string]any{}}
}

func (s *Session) ID() string  { return s.id }
func (s *Session) IsNew() bool { return s.isNew }

func (s *Session) Get(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// GetString returns the value at key when it is a string.
func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.data[key].(string)
	return v, ok
}

func (s *Session) Put(key string, value any) {
	s.data[key] = value
	s.dirty = true
}

func (s *Session) Forget(key string) {
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
}

func (s *Session) Flash(key string, value any) {
	s.flash[key] = value
	s.dirty = true
}

// Flashed returns a value flashed by the previous request.
func (s *Session) Flashed(key string) (any, bool) {
	v, ok := s.flashed[key]
	return v, ok
}

// needsSave reports whether the stored copy is stale: values changed,
// flashed values were consumed, or half the TTL has passed since the last
// save and the store expiry should slide forward.
func (s *Session) needsSave(now time.Time, ttl time.Duration) bool {
	if s.dirty || len(s.flashed) > 0 {
		return true
	}
	if s.isNew {
		return false
	}
	return now.Sub(s.savedAt) >= ttl/2
}

func (s *Session) encode(now time.Time) ([]byte, error) {
	return json.Marshal(payload{Data: s.data, Flash: s.flash, SavedAt: now.Unix()})
}

func decode(id string, raw []byte) (*Session, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	s := newSession(id)
	s.isNew = false
	if p.Data != nil {
		s.data = p.Data
	}
	s.flashed = p.Flash
	if p.SavedAt > 0 {
		s.savedAt = time.Unix(p.SavedAt, 0)
	}
	return s, nil
}

// FromContext returns the session attached by Manager.Middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// New returns an empty, unsaved session. Useful when driving guards
// without the middleware.
func New(id string) *Session { return newSession(id) }

// Save writes s to store in the format Manager reads back. Test clients
// use it to seed sessions before the first request.
func Save(ctx context.Context, store ports.SessionStore, s *Session, ttl time.Duration) error {
	now := time.Now()
	raw, err := s.encode(now)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, s.id, raw, ttl); err != nil {
		return err
	}
	s.savedAt, s.dirty, s.isNew = now, false, false
	return nil
}

// Options configures the session cookie and lifetime.
type Options struct {
	CookieName string
	Path       string
	Domain     string
	TTL        time.Duration
	Secure     bool
	SameSite   http.SameSite
	Clock      ports.Clock
}

// DefaultOptions mirrors common framework defaults.
func DefaultOptions() Options {
	return Options{
		CookieName: "shield-session",
		Path:       "/",
		TTL:        2 * time.Hour,
		SameSite:   http.SameSiteLaxMode,
	}
}

// Manager loads and persists sessions around each request.
type Manager struct {
	store   ports.SessionStore
	opts    Options
	ids     ports.IDGen
	validID func(string) bool
	log     ports.Logger
}

// NewManager builds a Manager. Zero option fields take DefaultOptions
// values; nil ids and log fall back to ULIDs and a nop logger.
func NewManager(store ports.SessionStore, opts Options, ids ports.IDGen, log ports.Logger) *Manager {
	def := DefaultOptions()
	if opts.CookieName == "" {
		opts.CookieName = def.CookieName
	}
	if opts.Path == "" {
		opts.Path = def.Path
	}
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.SameSite == 0 {
		opts.SameSite = def.SameSite
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystemClock()
	}
	if ids == nil {
		ids = idgen.NewULIDGen()
	}
	if log == nil {
		log = logzap.Nop()
	}
	valid := validID
	switch ids.(type) {
	case idgen.ULIDGen, *idgen.ULIDGen:
		valid = idgen.Valid
	}
	return &Manager{store: store, opts: opts, ids: ids, validID: valid, log: log}
}

// Middleware attaches a session to every request and saves it once the
// downstream handler returns, when it changed, consumed flash data or is
// due for an expiry refresh. Untouched new sessions are never stored. The
// cookie is refreshed on each request; an idle session survives at least
// half the TTL in the store.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := m.load(r)
			http.SetCookie(w, &http.Cookie{
				Name:     m.opts.CookieName,
				Value:    s.id,
				Path:     m.opts.Path,
				Domain:   m.opts.Domain,
				MaxAge:   int(m.opts.TTL.Seconds()),
				Secure:   m.opts.Secure,
				HttpOnly: true,
				SameSite: m.opts.SameSite,
			})

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))

			if err := m.commit(r.Context(), s); err != nil {
				m.log.Error("session: save failed", "err", err)
			}
		})
	}
}

func (m *Manager) load(r *http.Request) *Session {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || !m.validID(c.Value) {
		return newSession(m.ids.New())
	}
	raw, err := m.store.Load(r.Context(), c.Value)
	if err != nil {
		m.log.Error("session: load failed", "err", err)
		return newSession(m.ids.New())
	}
	if raw == nil {
		return newSession(m.ids.New())
	}
	s, err := decode(c.Value, raw)
	if err != nil {
		m.log.Warn("session: discarding undecodable payload", "err", err)
		return newSession(m.ids.New())
	}
	return s
}

func (m *Manager) commit(ctx context.Context, s *Session) error {
	now := m.opts.Clock.Now()
	if !s.needsSave(now, m.opts.TTL) {
		return nil
	}
	raw, err := s.encode(now)
	if err != nil {
		return err
	}
	return m.store.Save(ctx, s.id, raw, m.opts.TTL)
}

func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') || c == '-' || c == '_') {
			return false
		}
	}
	return true
}
