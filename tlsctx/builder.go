// Package tlsctx implements the TLS context builder (C3): assembling a
// *tls.Config per virtual host in the order-sensitive 14-step sequence
// spec §4.3 specifies, since the TLS library's side effects (certificate
// registration, CRL enablement, ALPN installation) depend on order.
package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"fmt"

	"github.com/tgragnato/ftpstls/creds"
	"github.com/tgragnato/ftpstls/ocspstaple"
	"github.com/tgragnato/ftpstls/passphrase"
	"github.com/tgragnato/ftpstls/tickets"
	"github.com/tgragnato/ftpstls/vhost"
)

// Builder assembles *tls.Config values for a VH. It holds the
// process-wide singletons (ticket ring, OCSP stapler) and the
// credential-loading collaborators (passphrase store); the VH itself
// supplies paths and policy.
type Builder struct {
	Passphrase *passphrase.Store
	Tickets    *tickets.Ring
	Stapler    *ocspstaple.Stapler

	// VerifyPeerCertificate, if set, is installed as the context's
	// custom chain-verification hook (C11 attaches here).
	VerifyPeerCertificate func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error

	// GetClientCertificate optionally supplies a client certificate for
	// data-channel client-role handshakes (SSCN ON, spec §4.9/§4.10).
	GetClientCertificate func(*tls.CertificateRequestInfo) (*tls.Certificate, error)
}

// Build assembles a *tls.Config for vh following spec §4.3's 14 steps.
// Steps that have no crypto/tls equivalent (security level, explicit
// NPN) are folded into the nearest applicable step or omitted with a
// DESIGN.md note; each numbered comment below names which spec step the
// following lines implement.
func (b *Builder) Build(vh *vhost.VH, passphraseFn creds.PassphraseFunc) (*tls.Config, error) {
	// Step 1: base context with TLS 1.2 through 1.3 enabled; step 10
	// replaces either bound only when the VH configures it.
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}

	// Step 2: passphrase callback — passphraseFn (bound to C1 by the
	// caller) is threaded through every credential load below instead of
	// installed as a context-wide callback, since Go's certificate
	// loading is synchronous rather than driven by a TLS-library
	// callback invoked mid-handshake.
	bundles, leaves, err := loadCredentials(vh, passphraseFn)
	if err != nil {
		return nil, err
	}
	for _, bundle := range bundles {
		cfg.Certificates = append(cfg.Certificates, bundle.Certificate)
	}

	// Step 3: CA trust material.
	if vh.CACertificateFile != "" || vh.CAPath != "" {
		pool, err := creds.LoadCABundle(vh.CACertificateFile, vh.CAPath)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
	}

	// Step 5: supplemental certificate chain, deduplicated against the
	// loaded leaves.
	if vh.CertificateChainFile != "" {
		chain, err := creds.LoadCertificateChain(vh.CertificateChainFile, leaves)
		if err != nil {
			return nil, err
		}
		for i := range cfg.Certificates {
			for _, extra := range chain {
				cfg.Certificates[i].Certificate = append(cfg.Certificates[i].Certificate, extra.Raw)
			}
		}
	}

	// Step 6: cipher lists, per protocol when split.
	cfg.CipherSuites = resolveCipherSuites(vh)
	cfg.PreferServerCipherSuites = vh.ServerCipherPreference //nolint:staticcheck // kept for parity with the configured directive even though crypto/tls always prefers its own order post-1.17.

	// Step 7: CRLs are loaded by the caller into the peerverify.Verifier,
	// not into this *tls.Config — crypto/tls has no CRL store of its
	// own; VerifyPeerCertificate below is where CRL_CHECK/CRL_CHECK_ALL
	// apply (spec §4.3 step 7, §4.11).

	// Step 8: ECDH curves.
	if curves, ok := resolveCurves(vh); ok {
		cfg.CurvePreferences = curves
	}

	// Step 9: ALPN selection, always the single protocol "ftp"; no VH
	// option turns it off.
	cfg.NextProtos = []string{"ftp"}

	// Step 10: enable exactly the configured protocol versions.
	if vh.MinProtocolVersion != 0 {
		cfg.MinVersion = vh.MinProtocolVersion
	}
	if vh.MaxProtocolVersion != 0 {
		cfg.MaxVersion = vh.MaxProtocolVersion
	}

	// Step 11: renegotiation policy is enforced by the handshake engine
	// (C7), not by *tls.Config, since crypto/tls 1.3 has no
	// renegotiation and crypto/tls 1.2 renegotiation is controlled
	// per-Conn via ConnectionState, not per-Config.

	// Step 12: session tickets + ticket key ring (C4). The ring's
	// WrapSession/UnwrapSession are process-wide (one ring serves every
	// VH), so they are wrapped here to additionally stamp and check this
	// VH's id in the ticket's Extra field: this is the actual binding
	// spec §4.3's "Session ID context" calls for, since
	// Config.SessionTicketKey (the stdlib's literal session-id-context
	// field) is ignored by crypto/tls whenever WrapSession is set.
	if vh.SessionTicketsEnabled && b.Tickets != nil {
		cfg.WrapSession = bindSessionToVH(vh.SID, b.Tickets.WrapSession)
		cfg.UnwrapSession = checkSessionVH(vh.SID, b.Tickets.UnwrapSession)
	} else {
		cfg.SessionTicketsDisabled = true
	}

	// Step 13: OCSP stapling callback (C6).
	if b.Stapler != nil {
		if err := installStapling(cfg, b.Stapler); err != nil {
			return nil, err
		}
	}

	// Step 14: peer verification (C11).
	switch vh.VerifyClient {
	case vhost.VerifyOn:
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	case vhost.VerifyOptional:
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	default:
		cfg.ClientAuth = tls.NoClientCert
	}
	if b.VerifyPeerCertificate != nil {
		cfg.VerifyPeerCertificate = b.VerifyPeerCertificate
	}
	if b.GetClientCertificate != nil {
		cfg.GetClientCertificate = b.GetClientCertificate
	}

	return cfg, nil
}

func loadCredentials(vh *vhost.VH, passphraseFn creds.PassphraseFunc) ([]*creds.Bundle, []*x509.Certificate, error) {
	var bundles []*creds.Bundle

	type slot struct {
		kind     vhost.CredentialKind
		certFile string
		keyFile  string
	}
	slots := []slot{
		{vhost.KindDSA, vh.DSACertFile, vh.DSAKeyFile},
		{vhost.KindEC, vh.ECCertFile, vh.ECKeyFile},
		{vhost.KindRSA, vh.RSACertFile, vh.RSAKeyFile},
	}
	for _, s := range slots {
		if s.certFile == "" {
			continue
		}
		bundle, err := creds.LoadPEMBundle(s.kind, s.certFile, s.keyFile, passphraseFn)
		if err != nil {
			return nil, nil, err
		}
		bundles = append(bundles, bundle)
	}
	if vh.PKCS12File != "" {
		bundle, err := creds.LoadPKCS12Bundle(vh.PKCS12File, passphraseFn)
		if err != nil {
			return nil, nil, err
		}
		bundles = append(bundles, bundle)
	}
	if len(bundles) == 0 {
		return nil, nil, fmt.Errorf("tlsctx: vhost %d has no configured certificate", vh.SID)
	}

	leaves := make([]*x509.Certificate, 0, len(bundles))
	for _, b := range bundles {
		leaves = append(leaves, b.Leaf)
	}
	return bundles, leaves, nil
}

// sessionVHTag is the 4-byte VH id stamped into every ticket this VH's
// context wraps, so a ticket minted under one VH is rejected if
// presented to another (spec §4.3).
func sessionVHTag(sid vhost.SID) [4]byte {
	var tag [4]byte
	binary.LittleEndian.PutUint32(tag[:], uint32(sid))
	return tag
}

// bindSessionToVH wraps a ring's WrapSession to additionally append
// this VH's tag to the ticket's Extra.
func bindSessionToVH(sid vhost.SID, wrap func(tls.ConnectionState, *tls.SessionState) ([]byte, error)) func(tls.ConnectionState, *tls.SessionState) ([]byte, error) {
	tag := sessionVHTag(sid)
	return func(cs tls.ConnectionState, ss *tls.SessionState) ([]byte, error) {
		ss.Extra = append(ss.Extra, append([]byte(nil), tag[:]...))
		return wrap(cs, ss)
	}
}

// checkSessionVH wraps a ring's UnwrapSession to reject any ticket whose
// embedded VH tag doesn't match sid: returning a nil session (with no
// error) is crypto/tls's "ticket not recognized" signal, which falls
// back to a full handshake rather than failing the connection outright.
func checkSessionVH(sid vhost.SID, unwrap func([]byte, tls.ConnectionState) (*tls.SessionState, error)) func([]byte, tls.ConnectionState) (*tls.SessionState, error) {
	tag := sessionVHTag(sid)
	return func(identity []byte, cs tls.ConnectionState) (*tls.SessionState, error) {
		ss, err := unwrap(identity, cs)
		if err != nil || ss == nil {
			return ss, err
		}
		for _, extra := range ss.Extra {
			if len(extra) == len(tag) && [4]byte(extra) == tag {
				return ss, nil
			}
		}
		return nil, nil
	}
}
