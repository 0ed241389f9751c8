// Package tokens implements the secret/token primitive behind CSRF
// protection. A secret is a long-lived random value kept server side; any
// number of tokens can be derived from it and each verifies against the
// secret alone.
//
// A token is "<salt>-<mac>", where mac is the base64url HMAC-SHA256 of the
// salt keyed by the secret. A fresh salt per token keeps tokens distinct
// across responses, which defeats compression side channels such as BREACH.
package tokens

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/aatuh/shield/ports"
)

const (
	defaultSecretLength = 18
	defaultSaltLength   = 8
)

// ErrSecretLength is returned by NewWithOptions for unusable lengths.
var ErrSecretLength = errors.New("tokens: secret length must be at least 16 bytes")

// Tokens creates and verifies tokens. It holds no per-request state and is
// safe for concurrent use; share one instance across requests.
type Tokens struct {
	secretLength int
	saltLength   int
}

var _ ports.Tokens = (*Tokens)(nil)

// Options tunes the generated sizes.
type Options struct {
	SecretLength int // random bytes in a secret
	SaltLength   int // characters of salt in a token
}

// New returns Tokens with default sizes.
func New() *Tokens {
	return &Tokens{secretLength: defaultSecretLength, saltLength: defaultSaltLength}
}

// NewWithOptions returns Tokens with custom sizes. Zero values keep defaults.
func NewWithOptions(opts Options) (*Tokens, error) {
	t := New()
	if opts.SecretLength != 0 {
		if opts.SecretLength < 16 {
			return nil, ErrSecretLength
		}
		t.secretLength = opts.SecretLength
	}
	if opts.SaltLength > 0 {
		t.saltLength = opts.SaltLength
	}
	return t, nil
}

// Secret generates a new random secret.
func (t *Tokens) Secret() (string, error) {
	b := make([]byte, t.secretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create derives a new token from secret.
func (t *Tokens) Create(secret string) string {
	salt := t.salt()
	return salt + "-" + sign(secret, salt)
}

// Verify reports whether token was derived from secret.
func (t *Tokens) Verify(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	salt, mac, ok := strings.Cut(token, "-")
	if !ok || salt == "" || mac == "" {
		return false
	}
	return hmac.Equal([]byte(mac), []byte(sign(secret, salt)))
}

// salt is hex so it never contains the "-" separator.
func (t *Tokens) salt() string {
	b := make([]byte, (t.saltLength+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:t.saltLength]
}

func sign(secret, salt string) string {
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(salt))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
