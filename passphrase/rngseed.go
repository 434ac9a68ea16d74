package passphrase

// seedRNG mirrors the reference behavior of feeding a low-entropy
// estimate of an acquired passphrase into the TLS library's RNG pool
// (spec §4.1, "at most 0.25 bits/byte"). Go's crypto/rand draws
// directly from the OS CSPRNG and exposes no seed-mixing API, so there
// is nothing for this module's "TLS library" collaborator to accept;
// the call is kept as a named seam so a future pluggable RNG seed path
// has somewhere to attach, and to document why production mod_tls-style
// entropy mixing is not applicable here.
func seedRNG(secret []byte) {
	_ = secret
}
