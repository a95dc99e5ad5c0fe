package cookies

import (
	"sync"
	"time"

	"github.com/teamforge/authedge/ports"
)

// Memory is an in-memory CredentialStore for tests and for contexts that
// have no browser response to write cookies to (e.g. the realtime relay's
// upstream connection).
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory credential store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the named credential.
func (m *Memory) Get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[name]
	return value, ok
}

// Set stores the named credential. TTL is not enforced in memory.
func (m *Memory) Set(name, value string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

// Clear removes the named credential.
func (m *Memory) Clear(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
}

var _ ports.CredentialStore = (*Memory)(nil)
