//go:build linux

package handshake

import (
	"net"

	"golang.org/x/sys/unix"
)

// peekBytes reads up to len(buf) bytes from conn without consuming them
// from the socket's receive buffer, using MSG_PEEK. This is what makes
// spec §9's shutdown heuristic safe: if the bytes turn out to belong to
// a genuine close_notify record, they are still there for tls.Conn's own
// Close to read.
func peekBytes(conn net.Conn, buf []byte) (int, error) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return conn.Read(buf)
	}
	raw, err := tcp.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var operr error
	cerr := raw.Read(func(fd uintptr) bool {
		n, _, operr = unix.Recvfrom(int(fd), buf, unix.MSG_PEEK)
		if operr == unix.EAGAIN {
			return false // not ready yet, let the runtime poller wait
		}
		return true
	})
	if cerr != nil {
		return 0, cerr
	}
	return n, operr
}
