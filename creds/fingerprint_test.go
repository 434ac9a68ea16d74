package creds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintHex(t *testing.T) {
	var fp [20]byte
	fp[0] = 0xAB
	fp[19] = 0xCD
	got := FingerprintHex(fp)
	require.Equal(t, "AB:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:CD", got)
}
