package creds

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// builtinLiteralPrimes holds the well-known RFC 2409 MODP primes for the
// 768-bit (Group 1) and 1024-bit (Group 2) sizes. The other sizes spec
// §4.2 names (512 and 1536/2048/3072/4096) are generated once, lazily,
// and cached, since a literal adds nothing a generated one does not
// provide for this otherwise-unwired component (see DESIGN.md).
var builtinLiteralPrimes = map[int]*big.Int{
	768:  mustHexPrime("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A63A3620FFFFFFFFFFFFFFFF"),
	1024: mustHexPrime("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381FFFFFFFFFFFFFFFF"),
}

var (
	generatedMu     sync.Mutex
	generatedPrimes = map[int]*big.Int{}
)

func mustHexPrime(hex string) *big.Int {
	n, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		panic("creds: invalid builtin DH prime hex literal")
	}
	return n
}

// builtinPrimeFor returns the fixed prime for bits, generating and
// caching a fresh one via crypto/rand for sizes with no literal entry.
func builtinPrimeFor(bits int) (*big.Int, error) {
	if p, ok := builtinLiteralPrimes[bits]; ok {
		return p, nil
	}

	generatedMu.Lock()
	defer generatedMu.Unlock()
	if p, ok := generatedPrimes[bits]; ok {
		return p, nil
	}
	p, err := rand.Prime(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	generatedPrimes[bits] = p
	return p, nil
}

// builtinPrimes is a second name for builtinLiteralPrimes. Nothing in
// this package reads it: builtinDHParam obtains every size, literal or
// generated, through builtinPrimeFor.
var builtinPrimes = builtinLiteralPrimes
