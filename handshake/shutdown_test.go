package handshake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllPrintableASCII(t *testing.T) {
	require.True(t, allPrintableASCII([]byte("USE")))
	require.True(t, allPrintableASCII([]byte{}))
	require.False(t, allPrintableASCII([]byte{0x17, 0x03, 0x03}))
	require.False(t, allPrintableASCII([]byte{'A', 0x00, 'B'}))
}
