package ocspstaple

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

// Responder builds and sends OCSP requests over HTTP/HTTPS (spec §4.6
// step 5).
type Responder struct {
	HTTPClient *http.Client
	NoNonce    bool
}

// NewResponder returns a Responder bounded by timeout.
func NewResponder(timeout time.Duration, noNonce bool) *Responder {
	return &Responder{HTTPClient: &http.Client{Timeout: timeout}, NoNonce: noNonce}
}

// ResponderURL resolves the OCSP responder to query: explicit
// configuration wins over the certificate's own AIA OCSP extension
// (spec §4.6 step 4).
func ResponderURL(configured string, leaf *x509.Certificate) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if len(leaf.OCSPServer) > 0 {
		return leaf.OCSPServer[0], nil
	}
	return "", fmt.Errorf("ocspstaple: no responder configured and certificate carries no AIA OCSP URL")
}

// Fetch builds an OCSP request for leaf signed by issuer, sends it to
// url, and parses the response. golang.org/x/crypto/ocsp.CreateRequest
// has no nonce-extension parameter, so no nonce is ever sent, and the
// response's nonce is not checked. The NoNonce option (spec §4.6 step 5)
// is stored on the Responder but does not change what Fetch does.
func (r *Responder) Fetch(ctx context.Context, url string, leaf, issuer *x509.Certificate) (*ocsp.Response, []byte, error) {
	opts := &ocsp.RequestOptions{Hash: crypto.SHA1}
	reqDER, err := ocsp.CreateRequest(leaf, issuer, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("ocspstaple: create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqDER))
	if err != nil {
		return nil, nil, fmt.Errorf("ocspstaple: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := r.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("ocspstaple: responder unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("ocspstaple: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("ocspstaple: responder returned HTTP %d", resp.StatusCode)
	}

	parsed, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("ocspstaple: parse response: %w", err)
	}
	return parsed, raw, nil
}
