package session

import (
	"context"
	"sync"
	"time"

	"github.com/aatuh/shield/clock"
	"github.com/aatuh/shield/ports"
)

// MemoryStore keeps sessions in process memory. Suitable for tests and
// single-instance deployments.
type MemoryStore struct {
	mu    sync.Mutex
	clock ports.Clock
	items map[string]memoryItem
}

type memoryItem struct {
	data    []byte
	expires time.Time
}

var _ ports.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store. A nil clock uses the system clock.
func NewMemoryStore(c ports.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &MemoryStore{clock: c, items: make(map[string]memoryItem)}
}

func (s *MemoryStore) Load(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	if !s.clock.Now().Before(it.expires) {
		delete(s.items, id)
		return nil, nil
	}
	out := make([]byte, len(it.data))
	copy(out, it.data)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.items[id] = memoryItem{data: buf, expires: s.clock.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
