// Package handshake implements the handshake engine (C7): a
// deadline-bounded wrapper around crypto/tls's own handshake with
// traffic accounting, data-channel-specific socket tuning, and the
// session-reuse-from-control enforcement spec §4.7 requires.
package handshake

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/tgragnato/ftpstls/common/metrics"
	"github.com/tgragnato/ftpstls/ftpserr"
)

// Role is which side of the TLS handshake this engine drives.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Options controls a single Handshake call.
type Options struct {
	Role Role

	// IsDataChannel selects the data-channel rules from spec §4.7:
	// TCP_NODELAY/no-cork, and (by the caller's ticket-ring wiring, not
	// this package) a non-renewing ticket decrypt variant.
	IsDataChannel bool

	// RawNoDelay, if true, skips restoring TCP_CORK after the handshake
	// (spec §4.7: "unless caller requested raw-nodelay").
	RawNoDelay bool

	Timeout time.Duration
	Log     logging.LeveledLogger
	Metrics *metrics.Metrics
}

// Result carries the completed *tls.Conn plus the accounting the caller
// needs to fold into session state.
type Result struct {
	Conn         *tls.Conn
	BytesRead    int64
	BytesWritten int64
}

// Engine drives handshakes using a shared set of defaults; all state is
// per-call, so a single Engine value may be reused across connections.
type Engine struct {
	DefaultTimeout time.Duration
	Log            logging.LeveledLogger
	Metrics        *metrics.Metrics
}

// Handshake performs the TLS handshake over conn using cfg, enforcing an
// overall deadline and classifying the outcome into the typed errors
// spec §7 names (Timeout/ProtocolError/PeerEof), per the
// handshake(conn, role, is_data_channel) contract of spec §4.7.
func (e *Engine) Handshake(ctx context.Context, conn net.Conn, cfg *tls.Config, opts Options) (*Result, error) {
	log := opts.Log
	if log == nil {
		log = e.Log
	}
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("handshake")
	}
	m := opts.Metrics
	if m == nil {
		m = e.Metrics
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = e.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var cork *corkState
	if opts.IsDataChannel {
		cork = disableCorkEnableNoDelay(conn)
		if !opts.RawNoDelay {
			defer cork.restore()
		}
	}

	cc := newCountingConn(conn, log)

	var tlsConn *tls.Conn
	switch opts.Role {
	case RoleClient:
		tlsConn = tls.Client(cc, cfg)
	default:
		tlsConn = tls.Server(cc, cfg)
	}

	log.Tracef("[handshake:%s] starting, data_channel=%v", roleStr(opts.Role), opts.IsDataChannel)
	err := tlsConn.HandshakeContext(ctx)

	result := &Result{Conn: tlsConn, BytesRead: cc.bytesRead(), BytesWritten: cc.bytesWritten()}
	if m != nil {
		m.InboundTrafficBytes.Add(float64(result.BytesRead))
		m.OutboundTrafficBytes.Add(float64(result.BytesWritten))
	}

	channel := "ctrl"
	if opts.IsDataChannel {
		channel = "data"
	}

	if err != nil {
		classified := classifyError(err)
		if m != nil {
			kind := strings.TrimPrefix(fmt.Sprintf("%T", classified), "*ftpserr.")
			m.HandshakeFailuresTotal.WithLabelValues(channel, kind).Inc()
		}
		return result, classified
	}

	if m != nil {
		m.HandshakesTotal.WithLabelValues(channel).Inc()
	}
	log.Tracef("[handshake:%s] complete, version=%x resumed=%v", roleStr(opts.Role), tlsConn.ConnectionState().Version, tlsConn.ConnectionState().DidResume)
	return result, nil
}

func roleStr(r Role) string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// classifyError maps crypto/tls/context errors onto spec §7's error
// taxonomy so callers can apply IsFatalToSession uniformly.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ftpserr.HandshakeTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ftpserr.HandshakeTimeout{Err: err}
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ftpserr.UnexpectedEOF{Err: err}
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return &ftpserr.HandshakeProtocol{Err: err}
	}

	var peerErr *tls.CertificateVerificationError
	if errors.As(err, &peerErr) {
		return &ftpserr.PeerAuthFailure{Err: err}
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return &ftpserr.HandshakeProtocol{Err: fmt.Errorf("peer alert %d: %w", alertErr, err)}
	}

	return &ftpserr.HandshakeProtocol{Err: err}
}
