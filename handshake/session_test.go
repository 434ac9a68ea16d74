package handshake

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnforceSessionReuseSkipped(t *testing.T) {
	require.NoError(t, EnforceSessionReuse(tls.ConnectionState{}, TicketAppData{}, &ControlSession{}, true))
	require.NoError(t, EnforceSessionReuse(tls.ConnectionState{}, TicketAppData{}, nil, false))
}

func TestEnforceSessionReuseRequiresResumption(t *testing.T) {
	control := &ControlSession{}
	err := EnforceSessionReuse(tls.ConnectionState{DidResume: false}, TicketAppData{}, control, false)
	require.Error(t, err)
}

func TestEnforceSessionReuseMatchesAppData(t *testing.T) {
	appData, err := NewTicketAppData()
	require.NoError(t, err)
	control := &ControlSession{TicketAppData: appData}

	require.NoError(t, EnforceSessionReuse(tls.ConnectionState{DidResume: true}, appData, control, false))

	var mismatched TicketAppData
	err = EnforceSessionReuse(tls.ConnectionState{DidResume: true}, mismatched, control, false)
	require.Error(t, err)
}

func TestControlSessionMarshalRoundTrip(t *testing.T) {
	appData, err := NewTicketAppData()
	require.NoError(t, err)
	cs := &ControlSession{
		SessionID:     []byte("sid-1"),
		TicketAppData: appData,
		PeerCert:      []byte("fake-der-bytes"),
	}

	decoded, err := UnmarshalControlSession(cs.Marshal())
	require.NoError(t, err)
	require.Equal(t, cs.SessionID, decoded.SessionID)
	require.Equal(t, cs.TicketAppData, decoded.TicketAppData)
	require.Equal(t, cs.PeerCert, decoded.PeerCert)
}

func TestControlSessionMarshalRoundTripEmptyFields(t *testing.T) {
	cs := &ControlSession{}
	decoded, err := UnmarshalControlSession(cs.Marshal())
	require.NoError(t, err)
	require.Empty(t, decoded.SessionID)
	require.Equal(t, cs.TicketAppData, decoded.TicketAppData)
	require.Empty(t, decoded.PeerCert)
}

func TestUnmarshalControlSessionRejectsTruncatedInput(t *testing.T) {
	_, err := UnmarshalControlSession([]byte("too short"))
	require.Error(t, err)
}
