package creds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectDHParamExactMatch(t *testing.T) {
	set := NewDHParamSet(true)
	set.byBits[1024] = &DHParam{Bits: 1024, P: mustHexPrime("FF"), G: mustHexPrime("02")}

	dp, err := set.SelectDHParam(1024)
	require.NoError(t, err)
	require.Equal(t, 1024, dp.Bits)
}

func TestSelectDHParamPicksSmallestLarger(t *testing.T) {
	set := NewDHParamSet(true)
	set.byBits[1024] = &DHParam{Bits: 1024, P: mustHexPrime("FF"), G: mustHexPrime("02")}
	set.byBits[2048] = &DHParam{Bits: 2048, P: mustHexPrime("FFFF"), G: mustHexPrime("02")}

	dp, err := set.SelectDHParam(1536)
	require.NoError(t, err)
	require.Equal(t, 2048, dp.Bits, "must pick the smallest configured size strictly larger than requested")
}

func TestSelectDHParamFallsBackToBuiltin(t *testing.T) {
	set := NewDHParamSet(true)
	dp, err := set.SelectDHParam(512)
	require.NoError(t, err)
	require.Equal(t, 512, dp.Bits)
}

func TestSelectDHParamEnforcesMinimumWithoutAllowWeak(t *testing.T) {
	set := NewDHParamSet(false)
	dp, err := set.SelectDHParam(512)
	require.NoError(t, err)
	require.GreaterOrEqual(t, dp.Bits, 2048, "AllowWeakDH unset must override keylen < 2048 up to 2048")
}
