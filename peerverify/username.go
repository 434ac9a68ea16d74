package peerverify

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"strconv"
	"strings"
)

// AttrCommonName and AttrEmailSubjAltName are the two named TLSUserName
// attributes (spec §4.11); AttrEmailSubjAltName selects the certificate's
// first rfc822Name (email) SAN.
const (
	AttrCommonName       = "CommonName"
	AttrEmailSubjAltName = "EmailSubjAltName"
)

// ExtractUserName extracts the configured X.509 attribute from cert for
// the TLSUserName comparison (spec §4.11): "CommonName",
// "EmailSubjAltName", or a numeric OID string like "1.2.3.4".
func ExtractUserName(cert *x509.Certificate, attr string) (string, error) {
	switch attr {
	case AttrCommonName:
		return cert.Subject.CommonName, nil
	case AttrEmailSubjAltName:
		if len(cert.EmailAddresses) == 0 {
			return "", fmt.Errorf("peerverify: certificate carries no email SAN")
		}
		return cert.EmailAddresses[0], nil
	default:
		return extractByOID(cert, attr)
	}
}

func extractByOID(cert *x509.Certificate, oidStr string) (string, error) {
	oid, err := parseOID(oidStr)
	if err != nil {
		return "", fmt.Errorf("peerverify: TLSUserName %q is neither a known name nor a numeric OID: %w", oidStr, err)
	}
	for _, name := range cert.Subject.Names {
		if name.Type.Equal(oid) {
			if s, ok := name.Value.(string); ok {
				return s, nil
			}
			return fmt.Sprintf("%v", name.Value), nil
		}
	}
	return "", fmt.Errorf("peerverify: no subject attribute with OID %s", oidStr)
}

func parseOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		oid[i] = n
	}
	return oid, nil
}
