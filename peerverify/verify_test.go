package peerverify

import (
	"crypto/x509"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRevocationCheckStopsAtFirstHit(t *testing.T) {
	ocspCalled := false
	v := &Verifier{
		Order: []Mechanism{MechCRL, MechOCSP},
		CRL: func(cert *x509.Certificate) (bool, error) {
			return true, nil
		},
		OCSP: func(cert *x509.Certificate) (bool, error) {
			ocspCalled = true
			return false, nil
		},
	}
	err := v.RevocationCheck(&x509.Certificate{})
	require.Error(t, err)
	require.False(t, ocspCalled, "OCSP must not run once CRL already flagged the cert unverified")
}

func TestRevocationCheckPropagatesError(t *testing.T) {
	v := &Verifier{
		Order: []Mechanism{MechOCSP},
		OCSP: func(cert *x509.Certificate) (bool, error) {
			return false, errors.New("responder down")
		},
	}
	require.Error(t, v.RevocationCheck(&x509.Certificate{}))
}

func TestMatchPeerNameDNSName(t *testing.T) {
	v := &Verifier{DNSNameRequired: true}
	cert := &x509.Certificate{DNSNames: []string{"FTP.Example.com"}}
	require.NoError(t, v.MatchPeerName(cert, "ftp.example.com"))
	require.Error(t, v.MatchPeerName(cert, "other.example.com"))
}

func TestMatchPeerNameRejectsEmbeddedNUL(t *testing.T) {
	v := &Verifier{}
	cert := &x509.Certificate{DNSNames: []string{"evil.com\x00.example.com"}}
	require.Error(t, v.MatchPeerName(cert, "example.com"))
}

func TestMatchPeerNameFallsBackToCN(t *testing.T) {
	v := &Verifier{}
	cert := &x509.Certificate{}
	cert.Subject.CommonName = "ftp.example.com"
	require.NoError(t, v.MatchPeerName(cert, "FTP.EXAMPLE.COM"))
}
