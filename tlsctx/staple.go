package tlsctx

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/tgragnato/ftpstls/ocspstaple"
)

// installStapling wires stapler into cfg via GetCertificate, since
// crypto/tls has no per-handshake OCSP callback of its own: the only
// place a fresh OCSPStaple byte string can be attached is the
// *tls.Certificate a GetCertificate call returns (spec §4.3 build-step
// 13, §4.6). Each call reselects the response rather than caching it on
// the *tls.Config, so rotation/expiry picked up by the Stapler's own
// cache is reflected on the next handshake.
//
// ClientHelloInfo carries no resumption indicator before the handshake
// completes, so the resumed parameter to Stapler.Select is always
// false here; a resumed connection simply reuses whatever staple was
// attached to the session the first time, which matches how
// crypto/tls's session resumption already skips re-sending the
// certificate message entirely.
func installStapling(cfg *tls.Config, stapler *ocspstaple.Stapler) error {
	if len(cfg.Certificates) == 0 {
		return nil
	}
	certs := cfg.Certificates
	cfg.Certificates = nil
	cfg.GetCertificate = func(info *tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert := selectCertificate(certs, info)
		leaf := cert.Leaf
		if leaf == nil {
			var err error
			leaf, err = x509.ParseCertificate(cert.Certificate[0])
			if err != nil {
				return cert, nil //nolint:nilerr // a staple failure must never block the handshake.
			}
		}
		var issuer *x509.Certificate
		if len(cert.Certificate) > 1 {
			issuer, _ = x509.ParseCertificate(cert.Certificate[1])
		}
		staple, err := stapler.Select(info.Context(), leaf, issuer, false, "")
		if err != nil || len(staple) == 0 {
			return cert, nil
		}
		withStaple := *cert
		withStaple.OCSPStaple = staple
		return &withStaple, nil
	}
	return nil
}

func selectCertificate(certs []tls.Certificate, info *tls.ClientHelloInfo) *tls.Certificate {
	for i := range certs {
		if err := info.SupportsCertificate(&certs[i]); err == nil {
			return &certs[i]
		}
	}
	return &certs[0]
}
