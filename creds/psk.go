package creds

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/tgragnato/ftpstls/common/constants"
	"github.com/tgragnato/ftpstls/ftpserr"
)

// PSKSet is the identity → key map loaded from a pre-shared key file
// (spec §4.2). Go's stdlib crypto/tls never negotiated classic PSK
// cipher suites pre-1.3 and has no PSK identity-hint callback; like
// DHParamSet this is a faithfully-implemented but unwired component
// (see DESIGN.md).
type PSKSet struct {
	byIdentity map[string]*big.Int
}

// MaxIdentityLength bounds identity length against the TLS library's
// identity-length limit (spec §4.2). Go's crypto/tls has no PSK
// identity API at all, so this uses the classic OpenSSL
// PSK_MAX_IDENTITY_LEN as the nearest well-known ceiling.
const MaxIdentityLength = 128

// LoadPSKFile loads a hex-encoded PSK file. path must carry the
// required "hex:" prefix; the remainder is the filesystem path. Each
// line is "identity:hexbytes". Files must not be group- or
// world-readable/writable; decoded keys must be at least MinPSKLength
// bytes.
func LoadPSKFile(path string) (*PSKSet, error) {
	if !strings.HasPrefix(path, constants.PSKFilePrefix) {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("PSK path %q must start with %q", path, constants.PSKFilePrefix)}
	}
	realPath := strings.TrimPrefix(path, constants.PSKFilePrefix)

	info, err := os.Stat(realPath)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("stat PSK file %s: %w", realPath, err)}
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("PSK file %s must not be group- or world-accessible", realPath)}
	}

	raw, err := os.ReadFile(realPath)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read PSK file %s: %w", realPath, err)}
	}

	set := &PSKSet{byIdentity: make(map[string]*big.Int)}
	for lineNo, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, hexKey, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("PSK file %s line %d: missing ':' separator", realPath, lineNo+1)}
		}
		if len(identity) > MaxIdentityLength {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("PSK file %s line %d: identity exceeds %d bytes", realPath, lineNo+1, MaxIdentityLength)}
		}
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("PSK file %s line %d: %w", realPath, lineNo+1, err)}
		}
		if len(keyBytes) < constants.MinPSKLength {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("PSK file %s line %d: key shorter than %d bytes", realPath, lineNo+1, constants.MinPSKLength)}
		}
		set.byIdentity[identity] = new(big.Int).SetBytes(keyBytes)
	}
	return set, nil
}

// Lookup returns the key for identity, if configured.
func (s *PSKSet) Lookup(identity string) (*big.Int, bool) {
	if s == nil {
		return nil, false
	}
	k, ok := s.byIdentity[identity]
	return k, ok
}
