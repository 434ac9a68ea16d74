package ocspstaple

import "crypto/sha1" //nolint:gosec // SHA-1 is the OCSP cache key algorithm spec §3 mandates.

func sha1Sum(data []byte) [20]byte {
	return sha1.Sum(data)
}
