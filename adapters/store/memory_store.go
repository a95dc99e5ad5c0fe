package store

import (
	"context"
	"sync"
	"time"

	"github.com/teamforge/authedge/core"
	"github.com/teamforge/authedge/ports"
)

// MemoryStore is an in-memory implementation of the EnvelopeStore interface
type MemoryStore struct {
	envelopes map[string]memoryEnvelope
	mu        sync.Mutex
}

type memoryEnvelope struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory envelope store
func NewMemoryStore() ports.EnvelopeStore {
	return &MemoryStore{
		envelopes: make(map[string]memoryEnvelope),
	}
}

// Put stores a signed envelope under a one-time handoff ID
func (s *MemoryStore) Put(ctx context.Context, id, envelope string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	s.envelopes[id] = memoryEnvelope{value: envelope, expiresAt: expiresAt}

	// Reclaim the entry after its TTL if it was never consumed
	go func() {
		time.Sleep(ttl)

		s.mu.Lock()
		defer s.mu.Unlock()

		if stored, exists := s.envelopes[id]; exists && !stored.expiresAt.After(expiresAt) {
			delete(s.envelopes, id)
		}
	}()

	return nil
}

// Consume retrieves and removes an envelope
func (s *MemoryStore) Consume(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.envelopes[id]
	if !exists {
		return "", core.ErrEnvelopeNotFound
	}

	delete(s.envelopes, id)

	if time.Now().After(stored.expiresAt) {
		return "", core.ErrEnvelopeNotFound
	}

	return stored.value, nil
}
