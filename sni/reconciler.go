// Package sni implements the SNI/HOST reconciler (C8): spec §4.8's
// seven-step algorithm for matching the TLS ClientHello's SNI against
// any FTP-level HOST command already processed, looking up the matching
// virtual host, and rebuilding the TLS context for it.
package sni

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/tgragnato/ftpstls/common/event"
	"github.com/tgragnato/ftpstls/creds"
	"github.com/tgragnato/ftpstls/vhost"
)

// AlertDescription names the TLS alert spec §4.8 wants sent for each
// failure mode. crypto/tls's GetConfigForClient hook has no way to pick
// a specific outbound alert — an error return always produces a
// generic internal_error alert from the library — so this is carried as
// metadata on the returned error for logging/diagnostics, not as an
// actual wire-level alert selection. See DESIGN.md.
type AlertDescription string

const (
	AlertAccessDenied     AlertDescription = "access_denied"
	AlertUnrecognizedName AlertDescription = "unrecognized_name"
	AlertHandshakeFailure AlertDescription = "handshake_failure"
	AlertProtocolVersion  AlertDescription = "protocol_version"
)

// ReconcileError carries the alert spec §4.8 names alongside a normal
// error message.
type ReconcileError struct {
	Alert AlertDescription
	Msg   string
}

func (e *ReconcileError) Error() string { return fmt.Sprintf("sni: %s: %s", e.Alert, e.Msg) }

// Builder is the subset of tlsctx.Builder the reconciler needs: assemble
// a fresh *tls.Config for a resolved VH.
type Builder interface {
	Build(vh *vhost.VH, passphraseFn creds.PassphraseFunc) (*tls.Config, error)
}

// Reconciler resolves SNI to a virtual host and rebuilds its TLS
// context, per spec §4.8.
type Reconciler struct {
	Manager    *vhost.Manager
	Builder    Builder
	Dispatcher event.TLSEventDispatcher

	// PassphraseFn supplies passphrases for any encrypted key the
	// resolved VH's context build needs.
	PassphraseFn creds.PassphraseFunc
}

// HostState is the per-session state the reconciler reads and updates:
// whether HOST has already been processed on the control channel, and
// which protocol version the original context enabled.
type HostState struct {
	HostProcessed  bool
	HostName       string // empty if no HOST yet, never an IP literal
	OriginalConfig *tls.Config
	CurrentSID     vhost.SID
}

// GetConfigForClient implements the crypto/tls.Config.GetConfigForClient
// hook for a data connection's handshake is never called with this
// reconciler installed (spec §4.8 step 7: "data-connection handshakes
// ignore SNI") — only control-channel *tls.Config values should install
// it.
func (r *Reconciler) GetConfigForClient(host *HostState) func(*tls.ClientHelloInfo) (*tls.Config, error) {
	return func(info *tls.ClientHelloInfo) (*tls.Config, error) {
		return r.Reconcile(info.Context(), info.ServerName, host)
	}
}

// Reconcile runs the seven-step algorithm for one ClientHello's SNI
// value. sni is info.ServerName as crypto/tls already parses it (empty
// string if the client sent no SNI extension at all); crypto/tls never
// passes an IP-literal SNI through ServerName in the first place since
// RFC 6066 forbids it and the library enforces that at parse time, so
// step 2 of spec §4.8 is already satisfied by the time this runs.
func (r *Reconciler) Reconcile(ctx context.Context, sni string, host *HostState) (*tls.Config, error) {
	if sni == "" {
		return host.OriginalConfig, nil
	}

	// Step 1: HOST/SNI case-insensitive match requirement.
	if host.HostProcessed && host.HostName != "" && !isIPLiteral(host.HostName) {
		if !strings.EqualFold(host.HostName, sni) {
			return nil, &ReconcileError{Alert: AlertAccessDenied, Msg: fmt.Sprintf("SNI %q does not match HOST %q", sni, host.HostName)}
		}
	}

	// Step 3: publish + raise event.
	if r.Dispatcher != nil {
		r.Dispatcher.OnNewTLSEvent(event.EventOnSNIReceived{ServerName: sni})
	}

	// Step 4: resolve VH.
	vh, ok := r.Manager.Lookup(sni)
	if !ok {
		return nil, &ReconcileError{Alert: AlertUnrecognizedName, Msg: fmt.Sprintf("no virtual host named %q", sni)}
	}
	if !vh.TLSEngine {
		return nil, &ReconcileError{Alert: AlertHandshakeFailure, Msg: fmt.Sprintf("TLS disabled on virtual host %q", sni)}
	}

	// Step 5: rebuild context.
	newCfg, err := r.Builder.Build(vh, r.PassphraseFn)
	if err != nil {
		return nil, &ReconcileError{Alert: AlertHandshakeFailure, Msg: err.Error()}
	}

	// Step 6: post-swap protocol-version check. info.SupportedVersions
	// isn't available here (only at ClientHello parse time, before this
	// callback runs with the final negotiated version), so this checks
	// the overlap between the original and new config's enabled ranges,
	// which is the next best proxy crypto/tls's API surface offers.
	if !versionRangesOverlap(host.OriginalConfig, newCfg) {
		return nil, &ReconcileError{Alert: AlertProtocolVersion, Msg: "no protocol version overlap after SNI context swap"}
	}

	if r.Dispatcher != nil {
		r.Dispatcher.OnNewTLSEvent(event.EventOnContextSwap{FromSID: uint32(host.CurrentSID), ToSID: uint32(vh.SID)})
	}
	host.CurrentSID = vh.SID

	return newCfg, nil
}

func isIPLiteral(name string) bool {
	return net.ParseIP(strings.Trim(name, "[]")) != nil
}

func versionRangesOverlap(a, b *tls.Config) bool {
	if a == nil || b == nil {
		return true
	}
	aMin, aMax := effectiveRange(a)
	bMin, bMax := effectiveRange(b)
	return aMin <= bMax && bMin <= aMax
}

func effectiveRange(c *tls.Config) (min, max uint16) {
	min, max = tls.VersionTLS10, tls.VersionTLS13
	if c.MinVersion != 0 {
		min = c.MinVersion
	}
	if c.MaxVersion != 0 {
		max = c.MaxVersion
	}
	return min, max
}
