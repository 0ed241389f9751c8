package ports

import (
	"context"
	"net/http"
	"time"
)

// Logger is a tiny façade to avoid vendor lock-in.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// Clock allows deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGen generates unique IDs.
type IDGen interface {
	New() string
}

// Validator defines the interface for input validation.
type Validator interface {
	ValidateStruct(ctx context.Context, obj interface{}) error
}

// EnvVar manages environment variables with typed getters.
type EnvVar interface {
	// GetOr returns the value or def when the variable is unset.
	GetOr(key, def string) string
	// GetBoolOr returns the value as a boolean or def when unset.
	GetBoolOr(key string, def bool) bool
	// GetIntOr returns the value as an integer or def when unset or invalid.
	GetIntOr(key string, def int) int
	// GetListOr splits a comma separated value, or returns def when unset.
	GetListOr(key string, def []string) []string
	// MustGet returns the value or panics if not present.
	MustGet(key string) string
}

// Encrypter encrypts and authenticates values bound to a purpose. A value
// encrypted for one purpose must not decrypt under another.
type Encrypter interface {
	Encrypt(value, purpose string) (string, error)
	Decrypt(ciphertext, purpose string) (string, error)
}

// Tokens issues per-session secrets and the tokens derived from them.
// Implementations must be safe for concurrent use.
type Tokens interface {
	Secret() (string, error)
	Create(secret string) string
	Verify(secret, token string) bool
}

// Session is the per-request view of a cookie-identified session.
type Session interface {
	Get(key string) (any, bool)
	Put(key string, value any)
	// Flash stores a value readable only during the next request.
	Flash(key string, value any)
}

// SessionStore persists encoded session payloads between requests.
// Load returns a nil payload and no error for unknown or expired ids.
type SessionStore interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Destroy(ctx context.Context, id string) error
}

// ViewLocals receives values shared with templates for one request.
type ViewLocals interface {
	Share(values map[string]any)
}

// HTTPRouter defines the interface for HTTP routing.
type HTTPRouter interface {
	http.Handler
	Get(pattern string, h http.HandlerFunc)
	Post(pattern string, h http.HandlerFunc)
	Put(pattern string, h http.HandlerFunc)
	Delete(pattern string, h http.HandlerFunc)
	Mount(pattern string, h http.Handler)
	Use(middlewares ...func(http.Handler) http.Handler)
}

// HTTPMiddleware defines the interface for HTTP middleware.
type HTTPMiddleware interface {
	RequestID() func(http.Handler) http.Handler
	RealIP() func(http.Handler) http.Handler
}

// CORSHandler defines the interface for CORS handling.
type CORSHandler interface {
	Handler(opts CORSOptions) func(http.Handler) http.Handler
}

// CORSOptions defines CORS configuration.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityHandler defines the interface for security middleware.
type SecurityHandler interface {
	Middleware() func(http.Handler) http.Handler
}
