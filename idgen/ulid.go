package idgen

import (
	"crypto/rand"
	"time"

	"github.com/aatuh/shield/ports"
	"github.com/oklog/ulid/v2"
)

// ULIDGen produces session identifiers. The entropy half of a ULID comes
// from crypto/rand, so ids are not guessable from their timestamp.
type ULIDGen struct{}

func (ULIDGen) New() string {
	t := time.Now().UTC()
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// NewULIDGen creates a new ULID generator that implements ports.IDGen.
func NewULIDGen() ports.IDGen {
	return &ULIDGen{}
}

// Valid reports whether s parses as a ULID. Session cookies carrying
// anything else are discarded before hitting the store.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
