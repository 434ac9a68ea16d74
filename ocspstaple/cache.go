// Package ocspstaple implements the OCSP stapler (C6): fetching,
// verifying, and caching OCSP responses, and selecting what to staple
// into a handshake (spec §4.6).
package ocspstaple

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/ocsp"

	"github.com/tgragnato/ftpstls/common/constants"
)

// CacheEntry is spec §3's "OCSP Response Cache Entry". Fabricated marks
// a locally-built tryLater fallback (spec §4.6 step 7), which never has
// a parsed *ocsp.Response body to inspect.
type CacheEntry struct {
	Fingerprint [20]byte
	Response    *ocsp.Response
	Raw         []byte
	Fabricated  bool
	InsertedAt  time.Time
}

// Cache stores OCSP responses keyed by certificate fingerprint, backed
// by the same TTL-cache library the session cache uses (spec §4.6,
// teacher-grounded via patrickmn/go-cache).
type Cache struct {
	c *gocache.Cache
}

// NewCache returns an empty OCSP response cache.
func NewCache() *Cache {
	return &Cache{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (c *Cache) key(fp [20]byte) string { return string(fp[:]) }

// Get returns the cached entry for fp, if present, regardless of
// staleness; callers consult Stale to decide whether to refetch.
func (c *Cache) Get(fp [20]byte) (*CacheEntry, bool) {
	v, ok := c.c.Get(c.key(fp))
	if !ok {
		return nil, false
	}
	return v.(*CacheEntry), true
}

// Put inserts or replaces the cached entry for fp.
func (c *Cache) Put(fp [20]byte, entry *CacheEntry) {
	c.c.Set(c.key(fp), entry, gocache.NoExpiration)
}

// Stale implements spec §4.6's staleness rule: a fabricated tryLater
// response is stale after OCSPTryLaterStaleAge; any other non-Good
// response is stale after OCSPNonSuccessStaleAge; a Good response with
// no nextUpdate is stale after OCSPNoNextUpdateStaleAge; a Good
// response with nextUpdate is stale past the halfway point between
// thisUpdate and nextUpdate, and expired past nextUpdate itself.
func Stale(entry *CacheEntry, now time.Time) bool {
	if entry == nil {
		return true
	}
	if entry.Fabricated {
		return now.Sub(entry.InsertedAt) > constants.OCSPTryLaterStaleAge
	}
	if entry.Response == nil || entry.Response.Status != ocsp.Good {
		return now.Sub(entry.InsertedAt) > constants.OCSPNonSuccessStaleAge
	}
	if entry.Response.NextUpdate.IsZero() {
		return now.Sub(entry.InsertedAt) > constants.OCSPNoNextUpdateStaleAge
	}
	if now.After(entry.Response.NextUpdate) {
		return true
	}
	halfLife := entry.Response.NextUpdate.Sub(entry.Response.ThisUpdate) / 2
	return now.After(entry.Response.ThisUpdate.Add(halfLife))
}
