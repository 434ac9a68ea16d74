package handshake

import (
	"crypto/tls"

	"github.com/tgragnato/ftpstls/ftpserr"
)

// RenegotiationPolicy controls whether a TLS 1.2 renegotiation or TLS
// 1.3 key update may be triggered on this connection (spec §4.7/§4.9).
type RenegotiationPolicy struct {
	// Allowed mirrors TLSOptions AllowClientRenegotiations (spec §6):
	// whether a client-initiated renegotiation is honored at all rather
	// than torn down.
	Allowed bool

	// ByteThreshold is the cumulative-bytes trigger for a
	// server-initiated rekey (spec §4.9); zero disables server-initiated
	// renegotiation.
	ByteThreshold int64
}

// ShouldRenegotiate reports whether a server-initiated rekey should be
// triggered given bytesSinceLast, per policy's threshold.
func (p RenegotiationPolicy) ShouldRenegotiate(bytesSinceLast int64) bool {
	return p.ByteThreshold > 0 && bytesSinceLast >= p.ByteThreshold
}

// Renegotiate checks policy and reports any reason a rekey is refused;
// it never drives the rekey itself, since crypto/tls exposes no
// caller-triggered hook for either mechanism spec §4.9 wants:
//   - TLS 1.3 key updates are performed automatically and silently by
//     crypto/tls with no exported method to request one on demand, so
//     byte-threshold-triggered rekeys from spec §4.9 have no effect on a
//     1.3 connection here beyond this policy check.
//   - TLS 1.2 renegotiation in crypto/tls is a client-only feature:
//     tls.Config.Renegotiation only takes effect when dialing as a
//     client, and a Go TLS *server* never initiates and never accepts a
//     client-initiated renegotiation at all. A client-initiated
//     renegotiation attempt against this server is therefore already
//     rejected by crypto/tls itself before this function would ever see
//     it; Renegotiate exists so that rejection is still surfaced to the
//     session as RenegotiationDisabled instead of a bare protocol error.
func Renegotiate(conn *tls.Conn, policy RenegotiationPolicy, clientInitiated bool) error {
	if !policy.Allowed {
		return &ftpserr.RenegotiationDisabled{ClientInitiated: clientInitiated}
	}
	return nil
}
