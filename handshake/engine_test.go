package handshake

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
}

func TestHandshakeCompletesOverPipe(t *testing.T) {
	cert := selfSignedCert(t)
	serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	clientCfg := &tls.Config{InsecureSkipVerify: true} //nolint:gosec // test-only, not production wiring.

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	e := &Engine{DefaultTimeout: 5 * time.Second}

	results := make(chan *Result, 2)
	errs := make(chan error, 2)
	go func() {
		r, err := e.Handshake(context.Background(), serverConn, serverCfg, Options{Role: RoleServer})
		results <- r
		errs <- err
	}()
	go func() {
		r, err := e.Handshake(context.Background(), clientConn, clientCfg, Options{Role: RoleClient})
		results <- r
		errs <- err
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}
}

func TestHandshakeTimesOutWithNoPeer(t *testing.T) {
	cert := selfSignedCert(t)
	serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	e := &Engine{DefaultTimeout: 50 * time.Millisecond}
	_, err := e.Handshake(context.Background(), serverConn, serverCfg, Options{Role: RoleServer})
	require.Error(t, err)
}
