// Package peerverify implements peer verification (C11): chain/CRL/OCSP
// checks plus the post-chain CN/SAN matching and the .tlslogin/
// TLSUserName client-authentication shortcuts (spec §4.11).
package peerverify

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"net"
	"strings"

	"github.com/tgragnato/ftpstls/ftpserr"
)

// Mechanism is one verification mechanism in the configurable order
// (spec §4.11): "crl" or "ocsp".
type Mechanism string

const (
	MechCRL  Mechanism = "crl"
	MechOCSP Mechanism = "ocsp"
)

// CRLChecker reports whether cert is revoked per the loaded CRLs.
type CRLChecker func(cert *x509.Certificate) (revoked bool, err error)

// OCSPChecker reports whether cert is revoked per OCSP.
type OCSPChecker func(cert *x509.Certificate) (revoked bool, err error)

// Verifier runs the configurable CRL/OCSP order followed by the
// post-chain SAN/CN checks.
type Verifier struct {
	Order []Mechanism // subset/order of {crl, ocsp}; first hit wins

	CRL  CRLChecker
	OCSP OCSPChecker

	DNSNameRequired    bool
	IPAddressRequired  bool
	CommonNameRequired bool
}

// RevocationCheck runs the configured CRL/OCSP mechanisms in order;
// once a mechanism flags the cert unverified (revoked), the remaining
// mechanisms are skipped (spec §4.11).
func (v *Verifier) RevocationCheck(cert *x509.Certificate) error {
	for _, mech := range v.Order {
		var (
			revoked bool
			err     error
		)
		switch mech {
		case MechCRL:
			if v.CRL == nil {
				continue
			}
			revoked, err = v.CRL(cert)
		case MechOCSP:
			if v.OCSP == nil {
				continue
			}
			revoked, err = v.OCSP(cert)
		default:
			continue
		}
		if err != nil {
			return &ftpserr.PeerAuthFailure{Err: fmt.Errorf("%s check failed: %w", mech, err)}
		}
		if revoked {
			return &ftpserr.PeerAuthFailure{Err: fmt.Errorf("certificate revoked per %s", mech)}
		}
	}
	return nil
}

// MatchPeerName runs the post-chain dNSName/iPAddress/CN checks against
// expected (the peer's resolved name or IP), per spec §4.11. Any SAN
// containing an embedded NUL byte is rejected outright as a spoofing
// guard.
func (v *Verifier) MatchPeerName(cert *x509.Certificate, expected string) error {
	for _, name := range cert.DNSNames {
		if strings.ContainsRune(name, 0) {
			return &ftpserr.PeerAuthFailure{Err: fmt.Errorf("dNSName SAN contains embedded NUL")}
		}
	}

	expectedIP := net.ParseIP(expected)

	if expectedIP != nil {
		for _, ip := range cert.IPAddresses {
			if ipsEqual(ip, expectedIP) {
				return nil
			}
		}
		if v.IPAddressRequired {
			return &ftpserr.PeerAuthFailure{Err: fmt.Errorf("no iPAddress SAN matches %s", expected)}
		}
	} else {
		for _, name := range cert.DNSNames {
			if strings.EqualFold(name, expected) {
				return nil
			}
		}
		if v.DNSNameRequired {
			return &ftpserr.PeerAuthFailure{Err: fmt.Errorf("no dNSName SAN matches %s", expected)}
		}
	}

	if strings.EqualFold(cert.Subject.CommonName, expected) {
		return nil
	}
	if v.CommonNameRequired {
		return &ftpserr.PeerAuthFailure{Err: fmt.Errorf("CN %q does not match %s", cert.Subject.CommonName, expected)}
	}

	return nil
}

func ipsEqual(a, b net.IP) bool {
	a4, b4 := a.To4(), b.To4()
	if a4 != nil && b4 != nil {
		return bytes.Equal(a4, b4)
	}
	return bytes.Equal(a.To16(), b.To16())
}
