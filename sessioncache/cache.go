// Package sessioncache implements the session cache (C5): a pluggable
// provider abstraction plus an in-memory default, shared between
// control and data connections of the same client to prove client
// continuity (spec §3, §4.5).
package sessioncache

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry is spec §3's "Session Cache Entry": a session id or ticket key
// name, the serialized session, and its expiry.
type Entry struct {
	ID          []byte
	Session     []byte
	ExpiresAt   time.Time
}

// CacheModeFlag mirrors the TLS library's cache-mode bitset (spec
// §4.5's "cache_mode_flags() -> bitset of library-specific cache-mode
// bits"); Go's crypto/tls has no analogous bitset for server-side
// session caching, so this is carried only as a provider capability
// descriptor, never consulted by crypto/tls itself.
type CacheModeFlag uint32

const (
	CacheModeServer CacheModeFlag = 1 << iota
	CacheModeNoInternal
	CacheModeNoAutoClear
)

// Provider is the pluggable session cache interface spec §4.5
// specifies: open/close/add/get/delete/clear/remove/status, named by a
// registered provider string (e.g. "internal", or an external backend).
type Provider interface {
	Open(info string, timeout time.Duration) error
	Close() error
	Add(id []byte, expiresAt time.Time, session []byte) error
	Get(id []byte) (session []byte, ok bool)
	Delete(id []byte) error
	Clear() error
	Remove() error
	Status() (count int, err error)
	CacheModeFlags() CacheModeFlag
}

// Cache wraps a Provider with the timeout-before-insert behavior spec
// §4.5 requires, and maintains the secondary in-memory table used to
// bridge SNI-induced context swaps (spec §4.8).
type Cache struct {
	Provider Provider
	Timeout  time.Duration

	bridge *bridgeTable
}

// NewCache wraps provider. If provider is nil, an in-memory default is
// installed.
func NewCache(provider Provider, timeout time.Duration) *Cache {
	if provider == nil {
		provider = NewMemoryProvider()
	}
	return &Cache{Provider: provider, Timeout: timeout, bridge: newBridgeTable()}
}

// Add inserts session under id, applying Timeout to its expiry. It
// returns whether the session must be freed by the caller. crypto/tls
// exposes no separate server-side internal session cache to fall back
// to (see DESIGN.md's Open Questions on C5), so this Cache is always
// the only cache and a failed Add always means the caller must free
// the session to avoid a leak (spec §4.5).
func (c *Cache) Add(id, session []byte) (mustFree bool, err error) {
	expiresAt := time.Now().Add(c.Timeout)
	if err := c.Provider.Add(id, expiresAt, session); err != nil {
		return true, err
	}
	return false, nil
}

// Get retrieves a session by id.
func (c *Cache) Get(id []byte) ([]byte, bool) {
	return c.Provider.Get(id)
}

// Delete removes a session by id, the TLS library's delete-callback
// delegation point (spec §4.5).
func (c *Cache) Delete(id []byte) error {
	return c.Provider.Delete(id)
}

// BridgeOnSwap preserves id->session across an SNI-triggered context
// swap so already-cached sessions remain retrievable post-swap, per
// spec §4.8's bridging rule, when the VH has no external cache of its
// own.
func (c *Cache) BridgeOnSwap(id []byte) {
	if session, ok := c.Provider.Get(id); ok {
		c.bridge.put(id, session)
	}
}

// GetBridged retrieves a session previously preserved by BridgeOnSwap.
func (c *Cache) GetBridged(id []byte) ([]byte, bool) {
	return c.bridge.get(id)
}

// ParseSpec builds a Cache from the `TLSSessionCache type:info [timeout]`
// directive (spec §4.5, §9: "Sessions: TLSSessionCache type:info
// [timeout]"). "internal" is the only provider name this module
// registers; any other name names an external provider this build does
// not carry, matching the provider-by-name plugin point the spec
// describes but leaving it unimplemented for named cases we don't ship.
func ParseSpec(spec string, defaultTimeout time.Duration) (*Cache, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, fmt.Errorf("sessioncache: empty TLSSessionCache spec")
	}
	typeAndInfo := strings.SplitN(fields[0], ":", 2)
	providerType := typeAndInfo[0]
	var info string
	if len(typeAndInfo) == 2 {
		info = typeAndInfo[1]
	}

	timeout := defaultTimeout
	if len(fields) > 1 {
		secs, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("sessioncache: invalid timeout %q: %w", fields[1], err)
		}
		timeout = time.Duration(secs) * time.Second
	}

	var provider Provider
	switch providerType {
	case "internal", "":
		provider = NewMemoryProvider()
	default:
		return nil, fmt.Errorf("sessioncache: unregistered provider %q", providerType)
	}
	if err := provider.Open(info, timeout); err != nil {
		return nil, fmt.Errorf("sessioncache: opening provider %q: %w", providerType, err)
	}
	return NewCache(provider, timeout), nil
}
