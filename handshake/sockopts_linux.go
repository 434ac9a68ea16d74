//go:build linux

package handshake

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// corkState remembers whether TCP_CORK was toggled so it can be
// restored exactly, per spec §4.7's "restore after completion unless
// caller requested raw-nodelay".
type corkState struct {
	tcp         *net.TCPConn
	priorNoCork bool
	applied     bool
}

// disableCorkEnableNoDelay sets TCP_NODELAY and clears TCP_CORK before a
// data-channel handshake (spec §4.7). Non-TCP connections (test pipes,
// unix sockets) are left untouched.
func disableCorkEnableNoDelay(conn net.Conn) *corkState {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return &corkState{}
	}
	st := &corkState{tcp: tcp}
	_ = tcp.SetNoDelay(true)
	raw, err := tcp.SyscallConn()
	if err != nil {
		return st
	}
	_ = raw.Control(func(fd uintptr) {
		if v, gerr := unix.GetsockoptInt(int(fd), syscall.IPPROTO_TCP, unix.TCP_CORK); gerr == nil {
			st.priorNoCork = v == 0
		}
		_ = unix.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, unix.TCP_CORK, 0)
	})
	st.applied = true
	return st
}

// restore reapplies TCP_CORK if it was set before the handshake began.
func (st *corkState) restore() {
	if !st.applied || st.priorNoCork || st.tcp == nil {
		return
	}
	raw, err := st.tcp.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, unix.TCP_CORK, 1)
	})
}
