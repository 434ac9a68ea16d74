// Package constants holds timing and sizing defaults shared across the
// FTPS TLS core, mirrored from the numeric defaults in the protocol
// specification rather than scattered as magic numbers per package.
package constants

import "time"

const (
	// ProviderTimeout bounds how long the passphrase provider subprocess
	// is given to print a secret before it is killed (§4.1).
	ProviderTimeout = 10 * time.Second

	// ProviderKillGrace is how long the passphrase provider is given to
	// exit after SIGTERM before SIGKILL is sent (§4.1: "Kill after
	// PROVIDER_TIMEOUT with SIGTERM, then SIGKILL").
	ProviderKillGrace = 2 * time.Second

	// DefaultHandshakeTimeout bounds a single TLS handshake, control or
	// data channel (§4.7).
	DefaultHandshakeTimeout = 300 * time.Second

	// DefaultStaplingTimeout bounds an OCSP responder HTTP round trip
	// (§4.6).
	DefaultStaplingTimeout = 10 * time.Second

	// OCSPTryLaterStaleAge is how long a cached TRY_LATER response is
	// considered usable before being refetched (§3).
	OCSPTryLaterStaleAge = 5 * time.Minute

	// OCSPNoNextUpdateStaleAge is the staleness window applied to a
	// response that carries no nextUpdate field (§4.6).
	OCSPNoNextUpdateStaleAge = time.Hour

	// OCSPNonSuccessStaleAge is the staleness window for any
	// non-successful OCSP response status (§4.6).
	OCSPNonSuccessStaleAge = 5 * time.Minute

	// DefaultTicketKeyMaxAge is how long a session ticket key remains
	// eligible for use before eviction (§3, S5).
	DefaultTicketKeyMaxAge = time.Hour

	// DefaultTicketKeyMaxCount bounds how many ticket keys are kept
	// simultaneously in the ring (§3, S5).
	DefaultTicketKeyMaxCount = 3

	// TicketKeyNameLength is the width of the key name used to select a
	// decrypt key out of the ring (§3, §4.4).
	TicketKeyNameLength = 16

	// TicketAppDataLength is the width of the cross-channel session
	// identity token bound into a TLS 1.3 session ticket (§4.7).
	TicketAppDataLength = 32

	// MinPSKLength is the minimum number of raw bytes a pre-shared key
	// file must decode to (§4.2).
	MinPSKLength = 20

	// PSKFilePrefix is the required literal prefix of a configured PSK
	// path (§4.2).
	PSKFilePrefix = "hex:"

	// PeekShutdownBytes/PeekShutdownTimeout implement the ill-behaved
	// client heuristic before a bidirectional TLS shutdown (§5).
	PeekShutdownBytes   = 3
	PeekShutdownTimeout = 5 * time.Second

	// DefaultSessionCacheTimeout applies when a TLSSessionCache directive
	// omits its optional timeout (§4.5, §9).
	DefaultSessionCacheTimeout = time.Hour
)

// StandardDHSizes are the built-in fixed DH parameter sizes mod_tls falls
// back to when no configured parameter of the requested size exists
// (§4.2).
var StandardDHSizes = []int{512, 768, 1024, 1536, 2048, 3072, 4096}

// MinAllowedDHSize is the floor enforced unless AllowWeakDH is set (§4.2).
const MinAllowedDHSize = 2048
