package passphrase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tgragnato/ftpstls/vhost"
)

func TestAcquireCachesByPath(t *testing.T) {
	vh := &vhost.VH{SID: 1, Name: "vh1"}
	calls := 0
	store := NewStore(nil, func(prompt string) ([]byte, error) {
		calls++
		return []byte("s3kr3t"), nil
	})

	secret1, err := store.Acquire(context.Background(), vh, vhost.KindRSA, "/etc/rsa.key", nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	secret2, err := store.Acquire(context.Background(), vh, vhost.KindRSA, "/etc/rsa.key", nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second acquire for the same path must hit the cache")
	require.Same(t, secret1, secret2)
}

func TestAcquireRefreshesOnPathChange(t *testing.T) {
	vh := &vhost.VH{SID: 1, Name: "vh1"}
	calls := 0
	store := NewStore(nil, func(prompt string) ([]byte, error) {
		calls++
		return []byte("s3kr3t"), nil
	})

	_, err := store.Acquire(context.Background(), vh, vhost.KindRSA, "/etc/rsa.key", nil)
	require.NoError(t, err)
	_, err = store.Acquire(context.Background(), vh, vhost.KindRSA, "/etc/other.key", nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestAcquireExhaustsRetriesOnVerifyFailure(t *testing.T) {
	vh := &vhost.VH{SID: 1, Name: "vh1"}
	store := NewStore(nil, func(prompt string) ([]byte, error) {
		return []byte("wrong"), nil
	})
	store.MaxPrompts = 3

	attempts := 0
	verify := func(path string, kind vhost.CredentialKind, candidate []byte) error {
		attempts++
		return errors.New("bad passphrase")
	}

	_, err := store.Acquire(context.Background(), vh, vhost.KindRSA, "/etc/rsa.key", verify)
	require.Error(t, err)
	require.Equal(t, 3, attempts)
}

func TestScrubVHRemovesOnlyThatVH(t *testing.T) {
	vh1 := &vhost.VH{SID: 1, Name: "vh1"}
	vh2 := &vhost.VH{SID: 2, Name: "vh2"}
	store := NewStore(nil, func(prompt string) ([]byte, error) { return []byte("s3kr3t"), nil })

	s1, err := store.Acquire(context.Background(), vh1, vhost.KindRSA, "/a.key", nil)
	require.NoError(t, err)
	_, err = store.Acquire(context.Background(), vh2, vhost.KindRSA, "/b.key", nil)
	require.NoError(t, err)

	store.ScrubVH(1)
	require.Empty(t, s1.Bytes())

	_, ok := store.records[key{sid: 1, kind: vhost.KindRSA}]
	require.False(t, ok)
	_, ok = store.records[key{sid: 2, kind: vhost.KindRSA}]
	require.True(t, ok)
}
