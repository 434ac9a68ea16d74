// Package creds implements the credential loader (C2): certificates,
// keys, CA bundles, CRLs, DH parameters, and PSK identities (spec §4.2).
// Loading is read-only with respect to any TLS context; the tlsctx
// package is the only consumer that installs loaded material.
package creds

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/tgragnato/ftpstls/ftpserr"
	"github.com/tgragnato/ftpstls/vhost"
)

// Bundle is a single loaded certificate+key pair, tagged with the slot
// it was requested for and its SHA-1 fingerprint for OCSP cache keying
// (spec §4.2).
type Bundle struct {
	Kind        vhost.CredentialKind
	Certificate tls.Certificate
	Leaf        *x509.Certificate
	Fingerprint [20]byte
}

// PassphraseFunc supplies a passphrase for an encrypted key, routed
// through the passphrase store (C1) by the caller.
type PassphraseFunc func(kind vhost.CredentialKind, path string) ([]byte, error)

// LoadPEMBundle reads certFile/keyFile with unbuffered I/O (spec §4.2:
// "to avoid stdio buffers retaining key bytes when cert+key share a
// file") and returns a Bundle for the given slot. If the key is
// encrypted, passphraseFn is invoked to decrypt it.
func LoadPEMBundle(kind vhost.CredentialKind, certFile, keyFile string, passphraseFn PassphraseFunc) (*Bundle, error) {
	certPEM, err := readUnbuffered(certFile)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read certificate %s: %w", certFile, err)}
	}
	keyPEM, err := readUnbuffered(keyFile)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read key %s: %w", keyFile, err)}
	}

	keyPEM, err = decryptPEMIfNeeded(keyPEM, kind, keyFile, passphraseFn)
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("cert/key mismatch for %s: %w", certFile, err)}
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("parse certificate %s: %w", certFile, err)}
	}
	cert.Leaf = leaf

	if warn := checkSlotMatch(kind, leaf); warn != "" {
		// Spec §4.2: a mismatched public-key algorithm in a slot is a
		// loud warning, not a load failure.
		fmt.Fprintln(os.Stderr, warn)
	}

	return &Bundle{
		Kind:        kind,
		Certificate: cert,
		Leaf:        leaf,
		Fingerprint: sha1.Sum(leaf.Raw),
	}, nil
}

// LoadPKCS12Bundle loads a PKCS12 file. It first tries MAC verification
// with an empty passphrase, then a NULL passphrase, and only invokes
// passphraseFn if both fail (spec §4.2).
func LoadPKCS12Bundle(path string, passphraseFn PassphraseFunc) (*Bundle, error) {
	raw, err := readUnbuffered(path)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read pkcs12 %s: %w", path, err)}
	}

	var (
		key  interface{}
		cert *x509.Certificate
	)
	for _, candidate := range [][]byte{[]byte(""), nil} {
		key, cert, err = pkcs12.Decode(raw, string(candidate))
		if err == nil {
			break
		}
	}
	if err != nil {
		if passphraseFn == nil {
			return nil, &ftpserr.PassphraseUnavailable{Err: fmt.Errorf("pkcs12 %s requires a passphrase: %w", path, err)}
		}
		secret, perr := passphraseFn(vhost.KindPKCS12, path)
		if perr != nil {
			return nil, &ftpserr.PassphraseUnavailable{Err: perr}
		}
		key, cert, err = pkcs12.Decode(raw, string(secret))
		for i := range secret {
			secret[i] = 0
		}
		if err != nil {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("pkcs12 %s: %w", path, err)}
		}
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("pkcs12 %s: unsupported private key type %T", path, key)}
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  signer,
		Leaf:        cert,
	}
	return &Bundle{
		Kind:        vhost.KindPKCS12,
		Certificate: tlsCert,
		Leaf:        cert,
		Fingerprint: sha1.Sum(cert.Raw),
	}, nil
}

// LoadCertificateChain loads and validates a supplemental chain file,
// deduplicating certificates already present among leafCerts (spec
// §4.3 build-step 5).
func LoadCertificateChain(path string, leafCerts []*x509.Certificate) ([]*x509.Certificate, error) {
	raw, err := readUnbuffered(path)
	if err != nil {
		return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read chain %s: %w", path, err)}
	}
	seen := make(map[[20]byte]bool, len(leafCerts))
	for _, c := range leafCerts {
		seen[sha1.Sum(c.Raw)] = true
	}

	var chain []*x509.Certificate
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
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("chain %s: %w", path, err)}
		}
		fp := sha1.Sum(cert.Raw)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		chain = append(chain, cert)
	}
	return chain, nil
}

// LoadCABundle parses CA certificates from path into pool. When dir is
// non-empty every regular file in it is also loaded (spec §4.3
// build-step 3, "file and/or directory").
func LoadCABundle(path, dir string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if path != "" {
		raw, err := readUnbuffered(path)
		if err != nil {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read CA bundle %s: %w", path, err)}
		}
		if !pool.AppendCertsFromPEM(raw) {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("no usable CA certificates in %s", path)}
		}
	}
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read CA directory %s: %w", dir, err)}
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			raw, err := readUnbuffered(dir + "/" + entry.Name())
			if err != nil {
				continue
			}
			pool.AppendCertsFromPEM(raw)
		}
	}
	return pool, nil
}

// LoadCRLs parses zero or more CRL files into a list usable by the
// peer-verification path (spec §4.3 build-step 7).
func LoadCRLs(paths []string) ([]*x509.RevocationList, error) {
	var out []*x509.RevocationList
	for _, path := range paths {
		raw, err := readUnbuffered(path)
		if err != nil {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("read CRL %s: %w", path, err)}
		}
		block, _ := pem.Decode(raw)
		der := raw
		if block != nil {
			der = block.Bytes
		}
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			return nil, &ftpserr.ConfigError{Err: fmt.Errorf("parse CRL %s: %w", path, err)}
		}
		out = append(out, crl)
	}
	return out, nil
}

func readUnbuffered(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size())
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func decryptPEMIfNeeded(keyPEM []byte, kind vhost.CredentialKind, path string, passphraseFn PassphraseFunc) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return keyPEM, nil
	}
	//nolint:staticcheck // x509.IsEncryptedPEMBlock is deprecated but this
	// is still the format real-world legacy FTPS key files use.
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	if passphraseFn == nil {
		return nil, &ftpserr.PassphraseUnavailable{Err: fmt.Errorf("%s is encrypted and no passphrase source is configured", path)}
	}
	secret, err := passphraseFn(kind, path)
	if err != nil {
		return nil, &ftpserr.PassphraseUnavailable{Err: err}
	}
	der, err := x509.DecryptPEMBlock(block, secret)
	for i := range secret {
		secret[i] = 0
	}
	if err != nil {
		return nil, &ftpserr.PassphraseUnavailable{Err: fmt.Errorf("decrypt %s: %w", path, err)}
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}

func checkSlotMatch(kind vhost.CredentialKind, leaf *x509.Certificate) string {
	switch kind {
	case vhost.KindRSA:
		if _, ok := leaf.PublicKey.(*rsa.PublicKey); !ok {
			return fmt.Sprintf("warning: certificate in RSA slot carries a %T public key", leaf.PublicKey)
		}
	case vhost.KindEC:
		if _, ok := leaf.PublicKey.(*ecdsa.PublicKey); !ok {
			return fmt.Sprintf("warning: certificate in EC slot carries a %T public key", leaf.PublicKey)
		}
	}
	return ""
}
