package ftpstate

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

	"github.com/tgragnato/ftpstls/handshake"
	"github.com/tgragnato/ftpstls/ioswitch"
	"github.com/tgragnato/ftpstls/sessioncache"
	"github.com/tgragnato/ftpstls/vhost"
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

func newControlMachine(t *testing.T, cache *sessioncache.Cache) (*Machine, net.Conn) {
	t.Helper()
	cert := selfSignedCert(t)
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close() })

	stream := ioswitch.NewStream(serverConn, false, nil)
	stream.Engine = &handshake.Engine{DefaultTimeout: 5 * time.Second}
	stream.TLSCfg = &tls.Config{Certificates: []tls.Certificate{cert}}

	m := &Machine{
		State:        StatePlain,
		VH:           &vhost.VH{},
		Engine:       stream.Engine,
		CtrlStream:   stream,
		SessionCache: cache,
	}
	return m, clientConn
}

func clientHandshake(t *testing.T, clientConn net.Conn) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		client := tls.Client(clientConn, &tls.Config{InsecureSkipVerify: true}) //nolint:gosec // test-only.
		done <- client.HandshakeContext(context.Background())
	}()
	return done
}

func TestHandleAUTHCompletesHandshakeAndRecordsControlSession(t *testing.T) {
	cache := sessioncache.NewCache(nil, time.Minute)
	m, clientConn := newControlMachine(t, cache)
	defer clientConn.Close()

	clientErr := clientHandshake(t, clientConn)

	resp := m.HandleAUTH(context.Background(), "TLS", true)
	require.NoError(t, <-clientErr)

	require.Equal(t, 234, resp.Code)
	require.Equal(t, StateSecured, m.State)
	require.NotNil(t, m.ControlSession)
	require.True(t, m.Flags.Has(vhost.FlagOnCtrl))

	cached, ok := cache.Get(m.ControlSession.TicketAppData[:])
	require.True(t, ok)
	decoded, err := handshake.UnmarshalControlSession(cached)
	require.NoError(t, err)
	require.Equal(t, m.ControlSession.TicketAppData, decoded.TicketAppData)
}

func TestHandleAUTHRejectsUnknownMechanism(t *testing.T) {
	m := &Machine{State: StatePlain, VH: &vhost.VH{}}
	resp := m.HandleAUTH(context.Background(), "BOGUS", true)
	require.Equal(t, 504, resp.Code)
	require.Equal(t, StatePlain, m.State)
}

func TestHandleAUTHRejectsWithoutCredentials(t *testing.T) {
	m := &Machine{State: StatePlain, VH: &vhost.VH{}}
	resp := m.HandleAUTH(context.Background(), "TLS", false)
	require.Equal(t, 431, resp.Code)
}

func TestHandleImplicitSSLSecuresBeforeAnyCommand(t *testing.T) {
	m, clientConn := newControlMachine(t, nil)
	defer clientConn.Close()

	clientErr := clientHandshake(t, clientConn)

	err := m.HandleImplicitSSL(context.Background())
	require.NoError(t, <-clientErr)

	require.NoError(t, err)
	require.Equal(t, StateSecured, m.State)
	require.True(t, m.Flags.Has(vhost.FlagOnCtrl))
	require.True(t, m.Flags.Has(vhost.FlagNeedDataProt))
	require.NotNil(t, m.ControlSession)
}

func TestPrepareDataStreamPrefersSessionCacheOverInProcessPointer(t *testing.T) {
	cache := sessioncache.NewCache(nil, time.Minute)
	inProcess := &handshake.ControlSession{TicketAppData: handshake.TicketAppData{0xAA}}
	cached := &handshake.ControlSession{TicketAppData: handshake.TicketAppData{0xAA}, PeerCert: []byte("cached-cert")}

	_, err := cache.Add(inProcess.TicketAppData[:], cached.Marshal())
	require.NoError(t, err)

	m := &Machine{VH: &vhost.VH{}, SessionCache: cache, ControlSession: inProcess}
	stream := &ioswitch.Stream{}
	m.PrepareDataStream(stream)

	require.NotNil(t, stream.ControlSession)
	require.Equal(t, []byte("cached-cert"), stream.ControlSession.PeerCert)
}

func TestPrepareDataStreamFallsBackWithoutCache(t *testing.T) {
	inProcess := &handshake.ControlSession{TicketAppData: handshake.TicketAppData{0xBB}}
	m := &Machine{VH: &vhost.VH{}, ControlSession: inProcess}
	stream := &ioswitch.Stream{}
	m.PrepareDataStream(stream)

	require.Same(t, inProcess, stream.ControlSession)
}

func TestPrepareDataStreamWaivesOnHaveCCC(t *testing.T) {
	m := &Machine{VH: &vhost.VH{}, ControlSession: &handshake.ControlSession{}}
	require.NoError(t, m.Flags.Set(vhost.FlagHaveCCC))
	stream := &ioswitch.Stream{}
	m.PrepareDataStream(stream)
	require.True(t, stream.SkipSessionReuseCheck)
}
