// Package ftpserr defines the typed error kinds the FTPS TLS core raises,
// independent of whatever error values crypto/tls itself returns (spec
// §7). Each kind wraps an underlying error so callers can still recover
// the original cause with errors.Unwrap, while switching on the kind
// with errors.As to decide how to respond to the client.
package ftpserr

import (
	"errors"
	"fmt"
)

// ConfigError marks a startup-only, fatal configuration problem: a bad
// file path, a key/cert mismatch, an unparsable cipher list, invalid DH
// parameters.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// PassphraseUnavailable marks a startup-only, fatal failure to acquire a
// private key passphrase (provider failed, or the operator exhausted
// interactive retries).
type PassphraseUnavailable struct {
	Err error
}

func (e *PassphraseUnavailable) Error() string { return fmt.Sprintf("passphrase unavailable: %v", e.Err) }
func (e *PassphraseUnavailable) Unwrap() error { return e.Err }

// HandshakeTimeout marks a deadline exceeded while negotiating TLS.
type HandshakeTimeout struct {
	Err error
}

func (e *HandshakeTimeout) Error() string { return fmt.Sprintf("handshake timeout: %v", e.Err) }
func (e *HandshakeTimeout) Unwrap() error { return e.Err }

// HandshakeProtocol marks a disabled protocol version, lack of a shared
// cipher, or malformed records. Reason carries the human-readable
// sub-diagnostic spec §7 calls for (e.g. "no shared cipher").
type HandshakeProtocol struct {
	Reason string
	Err    error
}

func (e *HandshakeProtocol) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("handshake protocol error: %v", e.Err)
	}
	return fmt.Sprintf("handshake protocol error: %s: %v", e.Reason, e.Err)
}
func (e *HandshakeProtocol) Unwrap() error { return e.Err }

// PeerAuthFailure marks an invalid chain, a CRL/OCSP revocation, or a
// required CN/SAN mismatch.
type PeerAuthFailure struct {
	Err error
}

func (e *PeerAuthFailure) Error() string { return fmt.Sprintf("peer authentication failed: %v", e.Err) }
func (e *PeerAuthFailure) Unwrap() error { return e.Err }

// SessionReuseRequired marks a data-channel handshake that succeeded but
// did not reuse the control channel's TLS session.
type SessionReuseRequired struct {
	Err error
}

func (e *SessionReuseRequired) Error() string {
	return fmt.Sprintf("data TLS session not reused from control: %v", e.Err)
}
func (e *SessionReuseRequired) Unwrap() error { return e.Err }

// UnexpectedEOF marks a peer that closed the connection mid-handshake.
// MiddleboxSuspected is set when the transport shape suggests an
// FTP-aware middlebox interfered rather than the peer itself.
type UnexpectedEOF struct {
	MiddleboxSuspected bool
	Err                error
}

func (e *UnexpectedEOF) Error() string {
	if e.MiddleboxSuspected {
		return fmt.Sprintf("unexpected eof mid-handshake (possible FTP-aware middlebox): %v", e.Err)
	}
	return fmt.Sprintf("unexpected eof mid-handshake: %v", e.Err)
}
func (e *UnexpectedEOF) Unwrap() error { return e.Err }

// RenegotiationDisabled marks a renegotiation attempt rejected by policy.
// ClientInitiated distinguishes a client-side request (disconnect) from
// a server-side one the engine merely skips.
type RenegotiationDisabled struct {
	ClientInitiated bool
	Err             error
}

func (e *RenegotiationDisabled) Error() string {
	if e.ClientInitiated {
		return fmt.Sprintf("client renegotiation requested but disabled: %v", e.Err)
	}
	return fmt.Sprintf("server renegotiation requested but disabled: %v", e.Err)
}
func (e *RenegotiationDisabled) Unwrap() error { return e.Err }

// IsFatalToSession reports whether err, raised on the control channel,
// must disconnect the whole FTP session rather than just the current
// command or data transfer (spec §7 propagation rule).
func IsFatalToSession(err error) bool {
	var (
		cfg   *ConfigError
		pass  *PassphraseUnavailable
		ht    *HandshakeTimeout
		hp    *HandshakeProtocol
		eof   *UnexpectedEOF
		reneg *RenegotiationDisabled
	)
	switch {
	case errors.As(err, &cfg), errors.As(err, &pass):
		return true
	case errors.As(err, &ht), errors.As(err, &hp), errors.As(err, &eof):
		return true
	case errors.As(err, &reneg):
		return reneg.ClientInitiated
	default:
		return false
	}
}
