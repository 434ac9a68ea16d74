package config

import (
	"crypto/tls"
	"strings"
)

// protocolNames maps the TLSProtocol directive's version tokens to
// Go's tls.VersionTLSxx constants. SSLv3 and TLSv1/TLSv1.1 are accepted
// as recognized tokens (mod_tls configs name them) but resolve to no Go
// constant, since crypto/tls has dropped them entirely; a directive
// naming only those leaves MinVersion/MaxVersion at zero, and the
// builder's own defaults (TLS 1.2 floor) apply.
var protocolNames = map[string]uint16{
	"TLSv1.2": tls.VersionTLS12,
	"TLSv1.3": tls.VersionTLS13,
}

// parseProtocol implements spec §6's "TLSProtocol (additive/subtractive
// syntax)": a bare list of versions sets exactly that range; a list of
// "+TLSv1.2"/"-TLSv1.2" tokens starts from Go's full supported range
// (TLS 1.2-1.3) and adds/removes versions, then collapses to a
// contiguous [min,max] since crypto/tls has no notion of a disjoint
// version set.
func parseProtocol(args []string) (min, max uint16, err error) {
	if len(args) == 0 {
		return 0, 0, nil
	}
	additive := false
	for _, a := range args {
		if strings.HasPrefix(a, "+") || strings.HasPrefix(a, "-") {
			additive = true
			break
		}
	}

	allowed := map[uint16]bool{}
	if additive {
		for v := range protocolNames {
			allowed[protocolNames[v]] = true
		}
		for _, a := range args {
			sign := a[0]
			name := a[1:]
			v, ok := protocolNames[name]
			if !ok {
				continue // unsupported-by-Go version token; see doc comment
			}
			if sign == '+' {
				allowed[v] = true
			} else {
				allowed[v] = false
			}
		}
	} else {
		for _, a := range args {
			v, ok := protocolNames[a]
			if !ok {
				continue
			}
			allowed[v] = true
		}
	}

	for _, v := range []uint16{tls.VersionTLS12, tls.VersionTLS13} {
		if !allowed[v] {
			continue
		}
		if min == 0 || v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, nil
}
