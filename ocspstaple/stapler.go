package ocspstaple

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/tgragnato/ftpstls/common/event"
)

// MustStapleOID is the X.509 "TLS Feature" extension (RFC 7633) OID
// that carries the must-staple status_request/status_request_v2 values
// (spec §4.6 step 7).
var MustStapleOID = []int{1, 3, 6, 1, 5, 5, 7, 1, 24}

// Stapler selects the OCSP response to present during a handshake,
// per spec §4.6's seven-step algorithm.
type Stapler struct {
	Cache      *Cache
	Responder  *Responder
	NoFakeTryLater bool

	Dispatcher event.TLSEventDispatcher
}

// NewStapler builds a Stapler. responder may be nil only if every
// certificate this Stapler serves already has a cached, non-stale
// response (tests/fixed deployments); production use always configures
// one.
func NewStapler(cache *Cache, responder *Responder, noFakeTryLater bool) *Stapler {
	return &Stapler{Cache: cache, Responder: responder, NoFakeTryLater: noFakeTryLater}
}

// Select implements the per-handshake response-selection algorithm.
// resumed must be true when the handshake resumed a prior session, in
// which case spec §4.6 step 1 says to staple nothing (RFC 6066 NOACK).
func (s *Stapler) Select(ctx context.Context, leaf, issuer *x509.Certificate, resumed bool, responderURL string) ([]byte, error) {
	if resumed {
		return nil, nil
	}

	fp := fingerprint(leaf)
	now := time.Now()

	if entry, ok := s.Cache.Get(fp); ok && !Stale(entry, now) {
		s.notify(false)
		return entry.Raw, nil
	}

	url, urlErr := ResponderURL(responderURL, leaf)
	var raw []byte
	var parsed *ocsp.Response
	var fetchErr error
	if urlErr == nil && s.Responder != nil {
		parsed, raw, fetchErr = s.Responder.Fetch(ctx, url, leaf, issuer)
	} else if urlErr != nil {
		fetchErr = urlErr
	} else {
		fetchErr = fmt.Errorf("ocspstaple: no responder configured")
	}

	if fetchErr == nil {
		s.Cache.Put(fp, &CacheEntry{Fingerprint: fp, Response: parsed, Raw: raw, InsertedAt: now})
		s.notify(false)
		return raw, nil
	}

	if mustStaple(leaf) || !s.NoFakeTryLater {
		fake := fabricateTryLater()
		s.Cache.Put(fp, &CacheEntry{Fingerprint: fp, Raw: fake, Fabricated: true, InsertedAt: now})
		s.notify(true)
		return fake, nil
	}

	return nil, fetchErr
}

func (s *Stapler) notify(fabricated bool) {
	if s.Dispatcher != nil {
		s.Dispatcher.OnNewTLSEvent(event.EventOnOCSPStapled{Fabricated: fabricated})
	}
}

func fingerprint(cert *x509.Certificate) [20]byte {
	return sha1Sum(cert.Raw)
}

// mustStaple reports whether leaf carries the TLS Feature extension
// with a status_request or status_request_v2 value (spec §4.6 step 7).
func mustStaple(leaf *x509.Certificate) bool {
	for _, ext := range leaf.Extensions {
		if !ext.Id.Equal(MustStapleOID) {
			continue
		}
		// RFC 7633: SEQUENCE OF INTEGER, values 5 (status_request) and
		// 17 (status_request_v2). A shallow scan for either byte value
		// in the DER payload is sufficient here since this extension's
		// SEQUENCE OF INTEGER encoding always carries the feature ID as
		// a single content byte.
		for _, b := range ext.Value {
			if b == 5 || b == 17 {
				return true
			}
		}
	}
	return false
}

// fabricateTryLater builds a minimal valid DER "OCSPResponse" with
// responseStatus = tryLater(3) and no responseBytes, per spec §4.6 step
// 7.
func fabricateTryLater() []byte {
	// OCSPResponse ::= SEQUENCE { responseStatus OCSPResponseStatus }
	// OCSPResponseStatus ::= ENUMERATED { tryLater(3) }
	return []byte{0x30, 0x03, 0x0A, 0x01, 0x03}
}
