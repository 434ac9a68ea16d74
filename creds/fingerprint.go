package creds

import "fmt"

// FingerprintHex renders a Bundle's SHA-1 fingerprint in colon-separated
// uppercase hex form ("AB:CD:..."), the form spec §6 uses for the
// TLS_CLIENT_A_KEY/TLS_CLIENT_A_SIG session notes. No code in this module
// sets those notes.
func FingerprintHex(fp [20]byte) string {
	out := make([]byte, 0, 59)
	for i, b := range fp {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, fmt.Sprintf("%02X", b)...)
	}
	return string(out)
}
