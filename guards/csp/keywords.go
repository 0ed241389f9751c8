package csp

import (
	"maps"

	"github.com/aatuh/shield/guard"
)

// NonceKeyword is replaced by 'nonce-<value>' for the current response.
const NonceKeyword = "@nonce"

// Resolver produces the substitution for a keyword on one request.
type Resolver func(c *guard.Context) string

// Keywords maps sentinel directive values to resolvers. A registry is read
// only once a guard has been built from it.
type Keywords struct {
	resolvers map[string]Resolver
}

func NewKeywords() *Keywords { return &Keywords{resolvers: map[string]Resolver{}} }

// DefaultKeywords returns a registry holding @nonce.
func DefaultKeywords() *Keywords {
	return NewKeywords().Register(NonceKeyword, func(c *guard.Context) string {
		n, _ := Nonce(c.Request)
		return "'nonce-" + n + "'"
	})
}

// Register adds or replaces a keyword.
func (k *Keywords) Register(keyword string, r Resolver) *Keywords {
	k.resolvers[keyword] = r
	return k
}

func (k *Keywords) lookup(value string) (Resolver, bool) {
	if k == nil {
		return nil, false
	}
	r, ok := k.resolvers[value]
	return r, ok
}

func (k *Keywords) clone() *Keywords {
	return &Keywords{resolvers: maps.Clone(k.resolvers)}
}
