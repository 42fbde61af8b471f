// Package storage persists conversation state snapshots under session
// keys. The serialized form is the state's own JSON dump; anything read
// back is expected to pass through the state migrator before use, so
// the store itself stays schema-agnostic.
package storage

import "sync"

// Store is the persistence interface: write serialized states under
// session keys and read them back. Implementations must tolerate
// unknown keys on Read (absent entries are simply omitted from the
// result).
type Store interface {
	Write(entries map[string][]byte) error
	Read(keys []string) (map[string][]byte, error)
	Close() error
}

// MemoryStore is an in-process Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Write stores a copy of every entry.
func (m *MemoryStore) Write(entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range entries {
		buf := make([]byte, len(value))
		copy(buf, value)
		m.data[key] = buf
	}
	return nil
}

// Read returns the stored payloads for the requested keys. Missing
// keys are omitted.
func (m *MemoryStore) Read(keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := m.data[key]; ok {
			buf := make([]byte, len(value))
			copy(buf, value)
			out[key] = buf
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
