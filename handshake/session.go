package handshake

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"errors"

	"github.com/tgragnato/ftpstls/ftpserr"
)

// TicketAppData is the 32 random bytes written into the control
// session's ticket and compared against the data session's ticket on
// every protected data-channel handshake (spec §4.7's "ticket appdata
// trick for TLSv1.3"): equal appdata proves both tickets descend from
// the same control-channel session even when TLS 1.3 session ids are
// always empty.
type TicketAppData [32]byte

// NewTicketAppData generates the 32 random bytes stamped onto a freshly
// completed control handshake.
func NewTicketAppData() (TicketAppData, error) {
	var b TicketAppData
	_, err := rand.Read(b[:])
	return b, err
}

// ControlSession is the subset of a completed control handshake's state
// that a data handshake is checked against (spec §4.7).
type ControlSession struct {
	SessionID     []byte
	TicketAppData TicketAppData
	PeerCert      []byte // raw DER of the control channel's verified peer cert, if any
}

// Marshal encodes the control session for storage in an external
// session cache (spec §4.5's "serialized session" entry): the fixed
// 32-byte ticket appdata, then a 2-byte length-prefixed session id,
// then a 2-byte length-prefixed peer cert DER.
func (cs *ControlSession) Marshal() []byte {
	buf := make([]byte, 0, len(cs.TicketAppData)+2+len(cs.SessionID)+2+len(cs.PeerCert))
	buf = append(buf, cs.TicketAppData[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(cs.SessionID)))
	buf = append(buf, cs.SessionID...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(cs.PeerCert)))
	buf = append(buf, cs.PeerCert...)
	return buf
}

// UnmarshalControlSession decodes a session previously produced by
// Marshal, e.g. one retrieved back out of a sessioncache.Cache.
func UnmarshalControlSession(b []byte) (*ControlSession, error) {
	if len(b) < len(TicketAppData{})+2 {
		return nil, errors.New("handshake: truncated control session")
	}
	var cs ControlSession
	copy(cs.TicketAppData[:], b[:len(cs.TicketAppData)])
	rest := b[len(cs.TicketAppData):]

	idLen := binary.BigEndian.Uint16(rest[:2])
	rest = rest[2:]
	if len(rest) < int(idLen)+2 {
		return nil, errors.New("handshake: truncated control session id")
	}
	cs.SessionID = append([]byte(nil), rest[:idLen]...)
	rest = rest[idLen:]

	certLen := binary.BigEndian.Uint16(rest[:2])
	rest = rest[2:]
	if len(rest) < int(certLen) {
		return nil, errors.New("handshake: truncated control session peer cert")
	}
	cs.PeerCert = append([]byte(nil), rest[:certLen]...)
	return &cs, nil
}

// EnforceSessionReuse implements spec §4.7's post-handshake check: the
// data connection's session must be marked reused, and either the
// session id or (for TLS 1.3, where ids are empty) the ticket appdata
// must match the control session's. skip bypasses the whole check for
// NoSessionReuseRequired or a client that already did CCC.
func EnforceSessionReuse(dataState tls.ConnectionState, dataAppData TicketAppData, control *ControlSession, skip bool) error {
	if skip || control == nil {
		return nil
	}
	if !dataState.DidResume {
		return &ftpserr.SessionReuseRequired{Err: errNotResumed}
	}

	idMatches := len(control.SessionID) > 0 && bytes.Equal(control.SessionID, sessionIDOf(dataState))
	appDataMatches := dataAppData == control.TicketAppData
	if !idMatches && !appDataMatches {
		return &ftpserr.SessionReuseRequired{Err: errAppDataMismatch}
	}

	if len(control.PeerCert) > 0 {
		if len(dataState.PeerCertificates) == 0 || !bytes.Equal(dataState.PeerCertificates[0].Raw, control.PeerCert) {
			return &ftpserr.PeerAuthFailure{Err: errPeerCertMismatch}
		}
	}
	return nil
}

// sessionIDOf is a placeholder: crypto/tls.ConnectionState does not
// expose the negotiated session id (it's internal to the library even
// for TLS 1.2), so for protocols where the id would matter this always
// returns nil and the check falls through to ticket appdata comparison,
// which is the only cross-channel proof Go's stdlib TLS stack actually
// exposes a hook for.
func sessionIDOf(tls.ConnectionState) []byte { return nil }

var (
	errNotResumed       = sessionReuseError("data TLS session was not resumed")
	errAppDataMismatch  = sessionReuseError("ticket application data does not match control session")
	errPeerCertMismatch = sessionReuseError("data channel peer certificate does not match control channel")
)

type sessionReuseError string

func (e sessionReuseError) Error() string { return string(e) }
