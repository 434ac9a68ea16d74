//go:build !linux

package handshake

import "net"

// corkState is a no-op on platforms without TCP_CORK; TCP_NODELAY alone
// still applies since it's portable.
type corkState struct {
	tcp *net.TCPConn
}

func disableCorkEnableNoDelay(conn net.Conn) *corkState {
	tcp, ok := conn.(*net.TCPConn)
	if ok {
		_ = tcp.SetNoDelay(true)
	}
	return &corkState{tcp: tcp}
}

func (st *corkState) restore() {}
