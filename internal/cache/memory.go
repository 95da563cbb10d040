package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryTier is the fast in-process cache tier. Entries past their TTL
// are never served; they linger until overwritten or swept.
type memoryTier struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

func newMemoryTier() *memoryTier {
	return &memoryTier{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (m *memoryTier) get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !e.expiresAt.After(m.nowFunc()) {
		return nil, false
	}
	return e.value, true
}

func (m *memoryTier) set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expiresAt: m.nowFunc().Add(ttl)}
	m.mu.Unlock()
}

// sweep removes expired entries and returns how many were dropped.
func (m *memoryTier) sweep() int {
	now := m.nowFunc()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, e := range m.entries {
		if !e.expiresAt.After(now) {
			delete(m.entries, key)
			n++
		}
	}
	return n
}

func (m *memoryTier) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
