package sessioncache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryProviderAddGetDelete(t *testing.T) {
	p := NewMemoryProvider()
	id := []byte("session-1")
	require.NoError(t, p.Add(id, time.Now().Add(time.Minute), []byte("payload")))

	got, ok := p.Get(id)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)

	require.NoError(t, p.Delete(id))
	_, ok = p.Get(id)
	require.False(t, ok)
}

func TestCacheAddMustFreeWhenInternalOnlyAndProviderFails(t *testing.T) {
	c := NewCache(&failingProvider{}, time.Minute)
	mustFree, err := c.Add([]byte("id"), []byte("payload"))
	require.Error(t, err)
	require.True(t, mustFree, "caller must free the session when the only cache fails to add")
}

func TestBridgeSurvivesContextSwap(t *testing.T) {
	c := NewCache(nil, time.Minute)
	id := []byte("session-1")
	_, err := c.Add(id, []byte("payload"))
	require.NoError(t, err)

	c.BridgeOnSwap(id)
	require.NoError(t, c.Delete(id))

	got, ok := c.GetBridged(id)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)
}

func TestParseSpecBuildsInternalProvider(t *testing.T) {
	c, err := ParseSpec("internal:ignored 120", time.Minute)
	require.NoError(t, err)
	require.IsType(t, &MemoryProvider{}, c.Provider)

	_, err = c.Add([]byte("id"), []byte("payload"))
	require.NoError(t, err)
	got, ok := c.Get([]byte("id"))
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)
}

func TestParseSpecAppliesDefaultTimeoutWhenOmitted(t *testing.T) {
	c, err := ParseSpec("internal:ignored", time.Minute)
	require.NoError(t, err)
	require.Equal(t, time.Minute, c.Timeout)
}

func TestParseSpecRejectsUnknownProvider(t *testing.T) {
	_, err := ParseSpec("memcached:127.0.0.1:11211", time.Minute)
	require.Error(t, err)
}

func TestParseSpecRejectsEmpty(t *testing.T) {
	_, err := ParseSpec("", time.Minute)
	require.Error(t, err)
}

type failingProvider struct{}

func (f *failingProvider) Open(string, time.Duration) error { return nil }
func (f *failingProvider) Close() error                     { return nil }
func (f *failingProvider) Add([]byte, time.Time, []byte) error {
	return errAlways
}
func (f *failingProvider) Get([]byte) ([]byte, bool)    { return nil, false }
func (f *failingProvider) Delete([]byte) error          { return nil }
func (f *failingProvider) Clear() error                 { return nil }
func (f *failingProvider) Remove() error                { return nil }
func (f *failingProvider) Status() (int, error)         { return 0, nil }
func (f *failingProvider) CacheModeFlags() CacheModeFlag { return 0 }

var errAlways = &cacheError{"provider unavailable"}

type cacheError struct{ s string }

func (e *cacheError) Error() string { return e.s }
