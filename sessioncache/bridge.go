package sessioncache

import (
	"encoding/hex"
	"sync"
)

// bridgeTable is the secondary in-memory table spec §4.8 calls for: it
// preserves session objects across SNI-induced context swaps so a
// session cached under the pre-swap VH's context remains retrievable
// under the post-swap one.
type bridgeTable struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newBridgeTable() *bridgeTable {
	return &bridgeTable{items: make(map[string][]byte)}
}

func (b *bridgeTable) put(id, session []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[hex.EncodeToString(id)] = session
}

func (b *bridgeTable) get(id []byte) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.items[hex.EncodeToString(id)]
	return v, ok
}
