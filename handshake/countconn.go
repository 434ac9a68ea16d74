package handshake

import (
	"net"
	"sync/atomic"

	"github.com/pion/logging"
)

// countingConn wraps net.Conn, tallying wire-level bytes so handshake
// traffic is visible in session counters (spec §4.7: "count bytes read
// and written at the wire level ... add the delta to session traffic
// counters"), and trace-logging each call as the nearest equivalent to
// the WANT_READ/WANT_WRITE transitions a non-blocking OpenSSL loop would
// report — Go's crypto/tls drives the handshake internally over a
// blocking net.Conn, so every Read/Write this wrapper observes during
// tls.Conn.HandshakeContext stands in for one of those transitions.
type countingConn struct {
	net.Conn
	log      logging.LeveledLogger
	read     atomic.Int64
	written  atomic.Int64
}

func newCountingConn(conn net.Conn, log logging.LeveledLogger) *countingConn {
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("handshake")
	}
	return &countingConn{Conn: conn, log: log}
}

func (c *countingConn) Read(b []byte) (int, error) {
	c.log.Trace("WANT_READ")
	n, err := c.Conn.Read(b)
	c.read.Add(int64(n))
	return n, err
}

func (c *countingConn) Write(b []byte) (int, error) {
	c.log.Trace("WANT_WRITE")
	n, err := c.Conn.Write(b)
	c.written.Add(int64(n))
	return n, err
}

func (c *countingConn) bytesRead() int64    { return c.read.Load() }
func (c *countingConn) bytesWritten() int64 { return c.written.Load() }
