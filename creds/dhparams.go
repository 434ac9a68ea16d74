package creds

import (
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sort"

	"github.com/tgragnato/ftpstls/common/constants"
	"github.com/tgragnato/ftpstls/ftpserr"
)

// DHParam is a classic Diffie-Hellman parameter pair, loaded from a PEM
// "DH PARAMETERS" block (spec §4.2). Go's stdlib TLS stack is TLS 1.3
// capable and does not negotiate classic DHE key exchange, so DHParam
// is not wired into any live handshake; it exists to satisfy the
// credential-loading contract spec §4.2 describes and is exercised by
// its own tests and by the size-selection algorithm below. See
// DESIGN.md for why this component has no crypto/tls attachment point.
type DHParam struct {
	P, G *big.Int
	Bits int
}

// DHParamSet is the size-indexed list the credential loader assembles
// from configured files, consulted by SelectDHParam at handshake time.
type DHParamSet struct {
	byBits    map[int]*DHParam
	AllowWeak bool
}

// NewDHParamSet returns an empty set.
func NewDHParamSet(allowWeak bool) *DHParamSet {
	return &DHParamSet{byBits: make(map[int]*DHParam), AllowWeak: allowWeak}
}

// dhParameter is the PKCS#3 DHParameter ASN.1 structure: SEQUENCE { p
// INTEGER, g INTEGER, (l INTEGER OPTIONAL) }.
type dhParameter struct {
	P, G *big.Int
}

// LoadDHParamFile parses zero or more "DH PARAMETERS" PEM blocks from
// path and adds each to the set, indexed by bit length.
func (s *DHParamSet) LoadDHParamFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &ftpserr.ConfigError{Err: fmt.Errorf("read DH params %s: %w", path, err)}
	}
	rest := raw
	loaded := 0
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "DH PARAMETERS" {
			continue
		}
		var params dhParameter
		if _, err := asn1.Unmarshal(block.Bytes, &params); err != nil {
			return &ftpserr.ConfigError{Err: fmt.Errorf("parse DH params %s: %w", path, err)}
		}
		bits := params.P.BitLen()
		s.byBits[bits] = &DHParam{P: params.P, G: params.G, Bits: bits}
		loaded++
	}
	if loaded == 0 {
		return &ftpserr.ConfigError{Err: fmt.Errorf("no DH PARAMETERS blocks found in %s", path)}
	}
	return nil
}

// SelectDHParam implements spec §4.2's keylen selection algorithm: a
// configured parameter set of exactly keylen bits is returned first;
// otherwise pick the smallest configured set strictly larger than
// keylen; if none exists, fall back to a built-in fixed parameter from
// constants.StandardDHSizes. AllowWeakDH unset and keylen < 2048
// overrides keylen up to 2048 first.
func (s *DHParamSet) SelectDHParam(keylen int) (*DHParam, error) {
	if !s.AllowWeak && keylen < constants.MinAllowedDHSize {
		keylen = constants.MinAllowedDHSize
	}

	if dp, ok := s.byBits[keylen]; ok {
		return dp, nil
	}

	var candidates []int
	for bits := range s.byBits {
		if bits > keylen {
			candidates = append(candidates, bits)
		}
	}
	if len(candidates) > 0 {
		sort.Ints(candidates)
		return s.byBits[candidates[0]], nil
	}

	return builtinDHParam(keylen)
}

func builtinDHParam(keylen int) (*DHParam, error) {
	chosen := constants.StandardDHSizes[len(constants.StandardDHSizes)-1]
	for _, size := range constants.StandardDHSizes {
		if size >= keylen {
			chosen = size
			break
		}
	}
	p, err := builtinPrimeFor(chosen)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("no built-in DH parameter of size %d: %w", chosen, err)}
	}
	return &DHParam{P: p, G: big.NewInt(2), Bits: chosen}, nil
}
