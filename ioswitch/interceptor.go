// Package ioswitch implements the I/O interceptor (C9): read/write/
// shutdown hooks wrapping a control or data stream, driving a
// post-open handshake for data streams, byte accounting, opportunistic
// renegotiation, and close_notify-aware shutdown (spec §4.9).
package ioswitch

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"

	"github.com/tgragnato/ftpstls/common/metrics"
	"github.com/tgragnato/ftpstls/handshake"
)

// SSCNMode mirrors the server's SSCN ON/OFF role toggle (spec §4.10):
// ON means the server takes the client role on the data connection
// ("active client-role data leg"); OFF (the default) means the server
// takes the server role.
type SSCNMode int

const (
	SSCNServer SSCNMode = iota // SSCN OFF: server handshakes as TLS server
	SSCNClient                 // SSCN ON: server handshakes as TLS client
)

// bytesLogger matches the shape of the teacher's throughput logger
// (proxy/lib/util.go): a default null implementation plus a metrics-backed
// one, so traffic accounting composes instead of being hardwired.
type bytesLogger interface {
	AddInbound(int64)
	AddOutbound(int64)
}

type nullBytesLogger struct{}

func (nullBytesLogger) AddInbound(int64)  {}
func (nullBytesLogger) AddOutbound(int64) {}

// metricsBytesLogger feeds byte deltas into the process-wide Prometheus
// counters.
type metricsBytesLogger struct {
	m *metrics.Metrics
}

func (l metricsBytesLogger) AddInbound(n int64) {
	if l.m != nil {
		l.m.InboundTrafficBytes.Add(float64(n))
	}
}

func (l metricsBytesLogger) AddOutbound(n int64) {
	if l.m != nil {
		l.m.OutboundTrafficBytes.Add(float64(n))
	}
}

// Stream wraps one control or data connection, applying spec §4.9's
// responsibilities uniformly to both.
type Stream struct {
	conn net.Conn
	tls  *tls.Conn // non-nil once a TLS handshake has completed on this stream

	IsDataChannel bool
	SSCN          SSCNMode

	NeedsDataProtection bool // whether PROT P/PBSZ policy requires TLS on this data stream

	// ControlSession is the control channel's session state this
	// stream's data handshake must prove continuity with (spec §4.7).
	// nil for the control stream itself, or for a data stream opened
	// before any control-channel AUTH has completed.
	ControlSession *handshake.ControlSession

	// SkipSessionReuseCheck waives the spec §4.7 reuse proof entirely:
	// set by the caller for NoSessionReuseRequired, or once HAVE_CCC has
	// been set on the control channel (the control session the proof
	// would run against no longer exists by then).
	SkipSessionReuseCheck bool

	Engine      *handshake.Engine
	TLSCfg      *tls.Config
	Logger      bytesLogger
	RenegPolicy handshake.RenegotiationPolicy

	bytesSinceReneg atomic.Int64

	closeNotifySent atomic.Bool
}

// NewStream wraps conn. If m is non-nil, byte counts feed its
// Prometheus traffic counters; otherwise they are discarded, matching the
// teacher's bytesNullLogger default.
func NewStream(conn net.Conn, isDataChannel bool, m *metrics.Metrics) *Stream {
	var logger bytesLogger = nullBytesLogger{}
	if m != nil {
		logger = metricsBytesLogger{m: m}
	}
	return &Stream{conn: conn, IsDataChannel: isDataChannel, Logger: logger}
}

// Open performs the post-open handshake a data stream needs (spec §4.9:
// "if the session requires data protection or SSCN is in server mode,
// perform a handshake ... If SSCN is in client mode, perform a
// client-side handshake"). Control streams never call Open; their
// handshake is driven directly by the command state machine on AUTH.
//
// When ControlSession is set, the completed handshake is checked
// against it per spec §4.7 (testable property #2, scenario S3): the
// data session must resume, and its ticket appdata must match the
// control session's, proving both descend from the same AUTH.
func (s *Stream) Open(ctx context.Context) error {
	if !s.IsDataChannel {
		return nil
	}
	if !s.NeedsDataProtection && s.SSCN == SSCNServer {
		return nil
	}

	role := handshake.RoleServer
	if s.SSCN == SSCNClient {
		role = handshake.RoleClient
	}

	cfg := s.TLSCfg
	var dataAppData handshake.TicketAppData
	if s.ControlSession != nil && cfg.UnwrapSession != nil {
		orig := cfg.UnwrapSession
		cfg = cfg.Clone()
		cfg.UnwrapSession = func(identity []byte, cs tls.ConnectionState) (*tls.SessionState, error) {
			ss, err := orig(identity, cs)
			captureTicketAppData(ss, &dataAppData)
			return ss, err
		}
	}

	result, err := s.Engine.Handshake(ctx, s.conn, cfg, handshake.Options{
		Role:          role,
		IsDataChannel: true,
	})
	if err != nil {
		return err
	}

	if s.ControlSession != nil {
		if rerr := handshake.EnforceSessionReuse(result.Conn.ConnectionState(), dataAppData, s.ControlSession, s.SkipSessionReuseCheck); rerr != nil {
			_ = result.Conn.Close()
			return rerr
		}
	}

	s.tls = result.Conn
	s.Logger.AddInbound(result.BytesRead)
	s.Logger.AddOutbound(result.BytesWritten)
	return nil
}

// captureTicketAppData scans a resumed session's Extra entries (spec
// §4.7's ticket appdata trick rides on tls.SessionState.Extra, the one
// field crypto/tls round-trips through a ticket unexamined) for one the
// size of a TicketAppData and copies it into out. A no-op if ss is nil
// (ticket not recognized) or carries no matching entry.
func captureTicketAppData(ss *tls.SessionState, out *handshake.TicketAppData) {
	if ss == nil {
		return
	}
	for _, extra := range ss.Extra {
		if len(extra) == len(out) {
			copy(out[:], extra)
			return
		}
	}
}

// RawConn returns the underlying plaintext connection, for the control
// channel's AUTH handshake (which this package does not drive itself —
// data-stream handshakes go through Open, but the control channel's
// first handshake is caller-initiated from the command state machine).
func (s *Stream) RawConn() net.Conn { return s.conn }

// Config returns the *tls.Config this stream's handshakes use.
func (s *Stream) Config() *tls.Config { return s.TLSCfg }

// SetTLSConn installs conn as the stream's active TLS connection once a
// caller-driven handshake (e.g. the control channel's AUTH) completes.
func (s *Stream) SetTLSConn(conn *tls.Conn) { s.tls = conn }

// activeConn returns the TLS connection once the handshake has
// completed, else the raw connection (plaintext control stream before
// AUTH, or a data stream that never required protection).
func (s *Stream) activeConn() net.Conn {
	if s.tls != nil {
		return s.tls
	}
	return s.conn
}

// Read samples inbound byte counters (spec §4.9: "for every read/write
// call, sample byte counters").
func (s *Stream) Read(b []byte) (int, error) {
	n, err := s.activeConn().Read(b)
	s.Logger.AddInbound(int64(n))
	return n, err
}

// Write samples outbound byte counters and opportunistically triggers a
// renegotiation once the configured byte threshold has been crossed
// (spec §4.9).
func (s *Stream) Write(b []byte) (int, error) {
	n, err := s.activeConn().Write(b)
	s.Logger.AddOutbound(int64(n))
	if err != nil {
		return n, err
	}

	total := s.bytesSinceReneg.Add(int64(n))
	if s.tls != nil && s.RenegPolicy.ShouldRenegotiate(total) {
		if rerr := handshake.Renegotiate(s.tls, s.RenegPolicy, false); rerr == nil {
			s.bytesSinceReneg.Store(0)
		}
	}
	return n, nil
}

// Shutdown is the stream-shutdown step of spec §4.9. It runs once per
// stream (later calls return nil) and always closes both directions;
// there is no write-only form. On a TCP connection it disables Nagle
// (TCP_CORK is left as it is), then delegates to the handshake package's
// peek-aware Shutdown, which sends close_notify unless the peer looks to
// have sent a plaintext command instead (spec §9). A stream without TLS
// just closes its connection.
func (s *Stream) Shutdown(ctx context.Context) error {
	if s.closeNotifySent.Swap(true) {
		return nil // already shut down
	}
	if s.tls == nil {
		return s.conn.Close()
	}
	if tcp, ok := s.conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return handshake.Shutdown(ctx, s.tls)
}

// Close closes the underlying connection without the close_notify
// heuristic, for abrupt teardowns (session timeout, fatal error).
func (s *Stream) Close() error {
	return s.conn.Close()
}

// ClearTLS implements the CCC command's "bidirectional shutdown of ctrl
// TLS, uninstall ctrl netio" (spec §4.10) without tearing down the
// underlying TCP connection: tls.Conn.Close sends close_notify but also
// closes the wrapped net.Conn, which CCC must not do since plaintext FTP
// commands continue on the same socket afterward. tls.Conn.CloseWrite,
// unlike Close, only sends the close_notify alert and explicitly leaves
// the underlying connection open, so it is the one crypto/tls primitive
// that actually matches CCC's semantics.
func (s *Stream) ClearTLS() error {
	if s.tls == nil {
		return nil
	}
	err := s.tls.CloseWrite()
	s.tls = nil
	return err
}
