package peerverify

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
)

// TLSLoginMatch implements the .tlslogin client-authentication shortcut
// (spec §4.11): the user's home directory may contain a file of PEM
// certificates; a byte-exact match of the presented client cert against
// any of them authenticates the user without a password.
func TLSLoginMatch(homeDir string, presented *x509.Certificate) (bool, error) {
	raw, err := os.ReadFile(filepath.Join(homeDir, ".tlslogin"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	rest := raw
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if bytes.Equal(block.Bytes, presented.Raw) {
			return true, nil
		}
	}
	return false, nil
}
