package ocspstaple

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ocsp"

	"github.com/tgragnato/ftpstls/common/constants"
)

func TestStaleNilEntry(t *testing.T) {
	require.True(t, Stale(nil, time.Now()))
}

func TestStaleFabricatedTryLater(t *testing.T) {
	entry := &CacheEntry{Fabricated: true, InsertedAt: time.Now().Add(-constants.OCSPTryLaterStaleAge - time.Second)}
	require.True(t, Stale(entry, time.Now()))

	fresh := &CacheEntry{Fabricated: true, InsertedAt: time.Now()}
	require.False(t, Stale(fresh, time.Now()))
}

func TestStaleGoodWithNextUpdateHalfLife(t *testing.T) {
	thisUpdate := time.Now().Add(-time.Hour)
	nextUpdate := time.Now().Add(time.Hour) // halfway point is "now"
	entry := &CacheEntry{
		Response:   &ocsp.Response{Status: ocsp.Good, ThisUpdate: thisUpdate, NextUpdate: nextUpdate},
		InsertedAt: thisUpdate,
	}
	require.True(t, Stale(entry, time.Now().Add(time.Second)), "past the halfway point must be stale")
	require.False(t, Stale(entry, time.Now().Add(-2*time.Minute)), "well before halfway must not be stale")
}

func TestStaleGoodWithoutNextUpdate(t *testing.T) {
	entry := &CacheEntry{
		Response:   &ocsp.Response{Status: ocsp.Good},
		InsertedAt: time.Now().Add(-constants.OCSPNoNextUpdateStaleAge - time.Second),
	}
	require.True(t, Stale(entry, time.Now()))
}

func TestStaleNonSuccess(t *testing.T) {
	entry := &CacheEntry{
		Response:   &ocsp.Response{Status: ocsp.Unknown},
		InsertedAt: time.Now().Add(-constants.OCSPNonSuccessStaleAge - time.Second),
	}
	require.True(t, Stale(entry, time.Now()))
}

func TestCacheGetPutRoundTrip(t *testing.T) {
	c := NewCache()
	var fp [20]byte
	fp[0] = 1
	entry := &CacheEntry{Fingerprint: fp, Raw: []byte("resp"), InsertedAt: time.Now()}
	c.Put(fp, entry)

	got, ok := c.Get(fp)
	require.True(t, ok)
	require.Equal(t, entry, got)
}
