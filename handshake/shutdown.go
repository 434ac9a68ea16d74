package handshake

import (
	"context"
	"crypto/tls"
	"time"
)

// peekTimeout is the fixed 5s bound spec §9 gives the pre-shutdown peek.
const peekTimeout = 5 * time.Second

// peekBufSize is the "up to 3 bytes" spec §9 names.
const peekBufSize = 3

// Shutdown implements spec §9's graceful-shutdown edge case: before
// closing, peek up to 3 bytes with a 5s timeout. Any non-printable-ASCII
// byte means the bytes are (the start of) a TLS record, so the shutdown
// proceeds normally via conn.Close, which sends close_notify and closes
// the connection; it does not wait for the peer's close_notify. The same
// happens when the peek returns no bytes. If every peeked byte is
// printable ASCII, the client is presumed to have sent a plaintext FTP
// command without close_notify; the raw connection is closed at once,
// without sending close_notify, to avoid a stall. On a TCP connection the
// peek uses MSG_PEEK, so the peeked bytes are not consumed.
func Shutdown(ctx context.Context, conn *tls.Conn) error {
	raw := conn.NetConn()

	deadline := time.Now().Add(peekTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = raw.SetReadDeadline(deadline)

	buf := make([]byte, peekBufSize)
	n, _ := peekBytes(raw, buf)
	_ = raw.SetReadDeadline(time.Time{})

	if n > 0 && allPrintableASCII(buf[:n]) {
		return raw.Close()
	}
	return conn.Close()
}

func allPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
