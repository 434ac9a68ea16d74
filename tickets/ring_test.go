package tickets

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingStartsWithOneKey(t *testing.T) {
	r, err := NewRing(time.Hour, 3)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())
}

func TestAdmissionEvictsOldestAtMaxCount(t *testing.T) {
	r, err := NewRing(time.Hour, 2)
	require.NoError(t, err)

	first := r.keys[0]
	require.NoError(t, r.Rotate())
	require.NoError(t, r.Rotate())

	require.Equal(t, 2, r.Len(), "ring must never exceed maxCount")
	for _, k := range r.keys {
		require.NotEqual(t, first.Name, k.Name, "oldest key must have been evicted")
	}
}

func TestAdmissionEvictsKeysOlderThanMaxAge(t *testing.T) {
	r, err := NewRing(time.Hour, 5)
	require.NoError(t, err)
	r.keys[0].CreatedAt = time.Now().Add(-2 * time.Hour)

	require.NoError(t, r.Rotate())
	require.Equal(t, 1, r.Len(), "key older than maxAge must be evicted on next admission")
}

func TestKeyNamesAreUnique(t *testing.T) {
	r, err := NewRing(time.Hour, 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Rotate())
	}
	seen := map[[16]byte]bool{}
	for _, k := range r.keys {
		require.False(t, seen[k.Name], "duplicate ticket key name")
		seen[k.Name] = true
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	r, err := NewRing(time.Hour, 3)
	require.NoError(t, err)

	ss := &tls.SessionState{}
	identity, err := r.WrapSession(tls.ConnectionState{}, ss)
	require.NoError(t, err)
	require.NotEmpty(t, identity)

	got, err := r.UnwrapSession(identity, tls.ConnectionState{})
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestUnwrapRejectsTamperedMAC(t *testing.T) {
	r, err := NewRing(time.Hour, 3)
	require.NoError(t, err)

	ss := &tls.SessionState{}
	identity, err := r.WrapSession(tls.ConnectionState{}, ss)
	require.NoError(t, err)

	tampered := append([]byte(nil), identity...)
	tampered[len(tampered)-1] ^= 0xFF

	got, err := r.UnwrapSession(tampered, tls.ConnectionState{})
	require.NoError(t, err)
	require.Nil(t, got, "a tampered ticket must be rejected as unrecognized, not surfaced as an error")
}

func TestUnwrapSignalsRenewForNonNewestKey(t *testing.T) {
	r, err := NewRing(time.Hour, 5)
	require.NoError(t, err)

	ss := &tls.SessionState{}
	identity, err := r.WrapSession(tls.ConnectionState{}, ss)
	require.NoError(t, err)

	require.NoError(t, r.Rotate())

	var name [16]byte
	copy(name[:], identity[:16])

	_, err = r.UnwrapSession(identity, tls.ConnectionState{})
	require.NoError(t, err)
	require.True(t, r.RingRenewHint(name), "decrypting with a no-longer-newest key must signal renew")
}
