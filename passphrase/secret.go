package passphrase

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Secret is a page-aligned, optionally mlock-ed byte region holding a
// private-key passphrase (spec §3's "Passphrase Record", `tls_pkey_t`
// analogue). Callers must call Scrub when the secret is no longer
// needed; a Secret left unscrubbed still zeroes on GC-driven finalizer
// best effort, but that is not a substitute for an explicit Scrub.
type Secret struct {
	buf    []byte
	length int
	locked bool
}

// pageSize is read once; Secret allocations round up to it so the
// backing region is eligible for mlock on every supported platform.
var pageSize = unix.Getpagesize()

// NewSecret copies data into a freshly allocated page-aligned buffer and
// attempts to mlock it. Locking failures are not fatal — spec §4.1 says
// pages are "mlock-ed when privileges permit" — but are reported so the
// caller can log a warning.
func NewSecret(data []byte) (*Secret, error) {
	size := pageSize
	for size < len(data) {
		size += pageSize
	}
	buf := make([]byte, size)
	copy(buf, data)

	s := &Secret{buf: buf, length: len(data)}
	runtime.SetFinalizer(s, (*Secret).Scrub)
	err := unix.Mlock(buf)
	s.locked = err == nil
	return s, err
}

// Bytes returns the live secret bytes. The returned slice aliases the
// Secret's internal buffer and must not be retained past a Scrub call.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf[:s.length]
}

// Locked reports whether the backing pages are currently mlocked.
func (s *Secret) Locked() bool { return s.locked }

// Relock re-applies mlock, used after fork/exec when a child process
// cannot assume page-lock inheritance (spec §4.4/§5).
func (s *Secret) Relock() error {
	err := unix.Mlock(s.buf)
	s.locked = err == nil
	return err
}

// Scrub zeroes the entire backing buffer and unlocks its pages. It is
// safe to call more than once.
func (s *Secret) Scrub() {
	if s == nil || s.buf == nil {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	if s.locked {
		_ = unix.Munlock(s.buf)
		s.locked = false
	}
	s.length = 0
}
