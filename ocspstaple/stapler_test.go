package ocspstaple

import (
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelectReturnsNilWhenResumed(t *testing.T) {
	s := NewStapler(NewCache(), nil, false)
	raw, err := s.Select(context.Background(), &x509.Certificate{}, &x509.Certificate{}, true, "")
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestSelectFabricatesTryLaterWhenResponderUnreachableAndNotDisabled(t *testing.T) {
	s := NewStapler(NewCache(), nil, false)
	raw, err := s.Select(context.Background(), &x509.Certificate{}, &x509.Certificate{}, false, "")
	require.NoError(t, err)
	require.Equal(t, fabricateTryLater(), raw)
}

func TestSelectReturnsErrorWhenFakeTryLaterDisabledAndNotMustStaple(t *testing.T) {
	s := NewStapler(NewCache(), nil, true)
	_, err := s.Select(context.Background(), &x509.Certificate{}, &x509.Certificate{}, false, "")
	require.Error(t, err)
}

func TestSelectServesCachedFreshResponse(t *testing.T) {
	cache := NewCache()
	leaf := &x509.Certificate{}
	fp := fingerprint(leaf)
	cache.Put(fp, &CacheEntry{Fingerprint: fp, Raw: []byte("cached"), Fabricated: true, InsertedAt: time.Now()})

	s := NewStapler(cache, nil, false)
	raw, err := s.Select(context.Background(), leaf, &x509.Certificate{}, false, "")
	require.NoError(t, err)
	require.Equal(t, []byte("cached"), raw)
}
