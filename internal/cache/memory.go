package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryEntry carries the encoded payload together with its own deadline so
// expiry is enforced per entry, independent of the LRU's capacity bound.
type memoryEntry struct {
	data      []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache is the L1 tier: a capacity-bounded, access-ordered LRU holding
// encoded payloads. Expiry is lazy: an expired entry is purged and reported
// as a miss on the access that finds it. There is no background sweep; lazy
// expiry, LRU eviction and explicit Delete are the only removal paths.
type MemoryCache struct {
	inner      *lru.Cache[string, memoryEntry]
	defaultTTL time.Duration
}

// NewMemoryCache creates an L1 cache bounded to maxEntries. defaultTTL is
// used when Set is called with a TTL <= 0.
func NewMemoryCache(maxEntries int, defaultTTL time.Duration) (*MemoryCache, error) {
	inner, err := lru.New[string, memoryEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{inner: inner, defaultTTL: defaultTTL}, nil
}

// Get returns the payload for key, or false if the key is absent or expired.
func (m *MemoryCache) Get(key string) ([]byte, bool) {
	entry, ok := m.inner.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.inner.Remove(key)
		return nil, false
	}
	return entry.data, true
}

// Set inserts or overwrites key. It reports whether the insert evicted the
// least-recently-used entry to make room.
func (m *MemoryCache) Set(key string, data []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := time.Now()
	return m.inner.Add(key, memoryEntry{
		data:      data,
		createdAt: now,
		expiresAt: now.Add(ttl),
	})
}

// Delete removes key. It is idempotent: deleting an absent key is a no-op.
func (m *MemoryCache) Delete(key string) {
	m.inner.Remove(key)
}

// Len returns the number of entries currently held, including any that have
// expired but not yet been touched.
func (m *MemoryCache) Len() int {
	return m.inner.Len()
}

// Purge drops every entry.
func (m *MemoryCache) Purge() {
	m.inner.Purge()
}
