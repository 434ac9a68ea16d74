package peerverify

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractUserNameCommonName(t *testing.T) {
	cert := &x509.Certificate{Subject: pkix.Name{CommonName: "alice"}}
	got, err := ExtractUserName(cert, AttrCommonName)
	require.NoError(t, err)
	require.Equal(t, "alice", got)
}

func TestExtractUserNameEmailSAN(t *testing.T) {
	cert := &x509.Certificate{EmailAddresses: []string{"alice@example.com"}}
	got, err := ExtractUserName(cert, AttrEmailSubjAltName)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", got)
}

func TestExtractUserNameByOID(t *testing.T) {
	oid := asn1.ObjectIdentifier{1, 2, 3, 4}
	cert := &x509.Certificate{
		Subject: pkix.Name{
			Names: []pkix.AttributeTypeAndValue{
				{Type: oid, Value: "custom-value"},
			},
		},
	}
	got, err := ExtractUserName(cert, "1.2.3.4")
	require.NoError(t, err)
	require.Equal(t, "custom-value", got)
}

func TestExtractUserNameRejectsUnknownAttr(t *testing.T) {
	cert := &x509.Certificate{}
	_, err := ExtractUserName(cert, "NotAnOIDOrKnownName")
	require.Error(t, err)
}
