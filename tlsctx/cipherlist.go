package tlsctx

import (
	"crypto/tls"

	"github.com/tgragnato/ftpstls/vhost"
)

// cipherNameIDs maps the OpenSSL-style names proftpd's mod_tls config
// accepts to Go's suite IDs, for the subset Go's stdlib TLS stack
// actually implements (TLS 1.3 suites are never user-selectable in
// crypto/tls, so only the TLS 1.2 and below suites appear here).
var cipherNameIDs = map[string]uint16{
	"ECDHE-RSA-AES128-GCM-SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-RSA-AES256-GCM-SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-ECDSA-AES128-GCM-SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-ECDSA-AES256-GCM-SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-RSA-CHACHA20-POLY1305":   tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"ECDHE-ECDSA-CHACHA20-POLY1305": tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	"ECDHE-RSA-AES128-SHA":          tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	"ECDHE-RSA-AES256-SHA":          tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	"AES128-GCM-SHA256":             tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	"AES256-GCM-SHA384":             tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	"AES128-SHA":                    tls.TLS_RSA_WITH_AES_128_CBC_SHA,
	"AES256-SHA":                    tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	"DES-CBC3-SHA":                  tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA,
}

// resolveCipherSuites translates the configured cipher-list string(s)
// into Go cipher suite IDs. A "" key in CipherSuites means the list
// applies regardless of negotiated protocol, matching the unsplit
// CipherSuite directive form (spec §4.3 build-step 6). Unknown names
// are skipped rather than rejected: most OpenSSL cipher strings name
// ciphers or key-exchange modes Go's stdlib TLS stack never
// implements (plain DH, export grade, RC4), and a config written for
// a richer TLS library must still produce a config that, after
// skipping those, builds the nearest equivalent in Go's smaller suite
// set.
func resolveCipherSuites(vh *vhost.VH) []uint16 {
	spec, ok := vh.CipherSuites[""]
	if !ok {
		for _, v := range vh.CipherSuites {
			spec = v
			break
		}
	}
	if spec == "" {
		return nil
	}
	var ids []uint16
	for _, name := range splitCipherList(spec) {
		if id, ok := cipherNameIDs[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func splitCipherList(spec string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i == len(spec) || spec[i] == ':' {
			if i > start {
				out = append(out, spec[start:i])
			}
			start = i + 1
		}
	}
	return out
}
