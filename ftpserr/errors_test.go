package ftpserr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnwrap(t *testing.T) {
	base := errors.New("boom")
	wrapped := &HandshakeTimeout{Err: base}
	require.ErrorIs(t, wrapped, base)

	var target *HandshakeTimeout
	require.ErrorAs(t, wrapped, &target)
	require.Same(t, wrapped, target)
}

func TestHandshakeProtocolReason(t *testing.T) {
	err := &HandshakeProtocol{Reason: "no shared cipher", Err: errors.New("alert: handshake_failure")}
	require.Contains(t, err.Error(), "no shared cipher")
}

func TestIsFatalToSession(t *testing.T) {
	require.True(t, IsFatalToSession(&ConfigError{Err: errors.New("x")}))
	require.True(t, IsFatalToSession(&HandshakeTimeout{Err: errors.New("x")}))
	require.True(t, IsFatalToSession(&UnexpectedEOF{Err: errors.New("x")}))
	require.False(t, IsFatalToSession(&SessionReuseRequired{Err: errors.New("x")}))
	require.False(t, IsFatalToSession(&PeerAuthFailure{Err: errors.New("x")}))

	require.False(t, IsFatalToSession(&RenegotiationDisabled{ClientInitiated: false, Err: errors.New("x")}))
	require.True(t, IsFatalToSession(&RenegotiationDisabled{ClientInitiated: true, Err: errors.New("x")}))
}
