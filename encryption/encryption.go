// Package encryption provides purpose-bound authenticated encryption on top
// of gorilla/securecookie. The purpose doubles as the securecookie name, so a
// ciphertext minted for one purpose fails to decode under any other.
package encryption

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aatuh/shield/ports"
	"github.com/gorilla/securecookie"
)

// CookiePrefix marks cookie values holding encrypted payloads.
const CookiePrefix = "e:"

var (
	// ErrShortAppKey is returned when the application key is too weak to
	// derive encryption keys from.
	ErrShortAppKey = errors.New("encryption: app key must be at least 16 bytes")
	// ErrEmptyPurpose is returned when encrypting without a purpose.
	ErrEmptyPurpose = errors.New("encryption: purpose is required")
)

// Encrypter implements ports.Encrypter.
type Encrypter struct {
	sc *securecookie.SecureCookie
}

var _ ports.Encrypter = (*Encrypter)(nil)

// New builds an Encrypter from explicit keys. hashKey authenticates (32 or
// 64 bytes recommended); blockKey encrypts and must be 16, 24 or 32 bytes.
func New(hashKey, blockKey []byte) (*Encrypter, error) {
	if len(hashKey) == 0 {
		return nil, errors.New("encryption: hash key is required")
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption: block key must be 16, 24 or 32 bytes, got %d", len(blockKey))
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// Expiry belongs to whatever carries the ciphertext (cookie max-age).
	sc.MaxAge(0)
	return &Encrypter{sc: sc}, nil
}

// NewFromAppKey derives both keys from a single application secret.
func NewFromAppKey(appKey string) (*Encrypter, error) {
	if len(appKey) < 16 {
		return nil, ErrShortAppKey
	}
	hashKey := sha256.Sum256([]byte("shield:hash:" + appKey))
	blockKey := sha256.Sum256([]byte("shield:block:" + appKey))
	return New(hashKey[:], blockKey[:])
}

// Encrypt seals value for purpose.
func (e *Encrypter) Encrypt(value, purpose string) (string, error) {
	if purpose == "" {
		return "", ErrEmptyPurpose
	}
	return e.sc.Encode(purpose, value)
}

// Decrypt opens a ciphertext sealed for purpose.
func (e *Encrypter) Decrypt(ciphertext, purpose string) (string, error) {
	if purpose == "" {
		return "", ErrEmptyPurpose
	}
	var value string
	if err := e.sc.Decode(purpose, ciphertext, &value); err != nil {
		return "", err
	}
	return value, nil
}

// EncodeCookieValue prefixes a ciphertext and URL-escapes it for use as a
// cookie value readable by client scripts.
func EncodeCookieValue(ciphertext string) string {
	return url.QueryEscape(CookiePrefix + ciphertext)
}

// DecodeCookieValue reverses EncodeCookieValue. It reports false when the
// value is not escaped properly or lacks the prefix.
func DecodeCookieValue(raw string) (string, bool) {
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	ciphertext, ok := strings.CutPrefix(unescaped, CookiePrefix)
	if !ok || ciphertext == "" {
		return "", false
	}
	return ciphertext, true
}
