package statement

import "sync"

// Cache holds at most one Entry per session. Put replaces whatever the
// session held before, so the latest upload always wins.
type Cache interface {
	// Get returns the session's entry, or nil when there is none
	Get(session string) (*Entry, error)

	// Put stores entry as the session's only entry
	Put(session string, entry *Entry) error

	// Close releases any underlying resources
	Close() error
}

// MemoryCache implements Cache in process memory
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Entry)}
}

// Get returns the session's entry
func (m *MemoryCache) Get(session string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[session], nil
}

// Put replaces the session's entry
func (m *MemoryCache) Put(session string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[session] = entry
	return nil
}

// Close is a no-op
func (m *MemoryCache) Close() error {
	return nil
}
