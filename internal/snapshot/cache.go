package snapshot

import (
	"context"
	"sync"
	"time"
)

// Cache stores the last known value per key.
type Cache interface {
	// Save replaces the value under key.
	Save(ctx context.Context, key string, v any) error
	// Load decodes the value under key into out. It returns false, and
	// leaves out untouched, when there is no live entry.
	Load(ctx context.Context, key string, out any) (bool, error)
}

// Keys used by the coordinator.
const (
	KeyGroups = "groups"
	KeyUsers  = "users"
)

// RoutesKey returns the key of a nature's route table.
func RoutesKey(nature string) string { return "routes:" + nature }

type memoryEntry struct {
	data    []byte
	savedAt time.Time
}

// Memory is an in-process Cache. Entries older than the TTL are dead; a
// zero TTL keeps them forever.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Save implements Cache. The value is encoded, so later changes to v do
// not leak into the cache.
func (m *Memory) Save(_ context.Context, key string, v any) error {
	data, err := encode(v, CompressionNone)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{data: data, savedAt: m.now()}
	return nil
}

// Load implements Cache.
func (m *Memory) Load(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.ttl > 0 && m.now().Sub(e.savedAt) > m.ttl {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := decode(e.data, out); err != nil {
		return false, err
	}
	return true, nil
}
