// Package event is the cross-component notification bus for the FTPS TLS
// core. The SNI/HOST reconciler, handshake engine, ticket ring, and
// command state machine publish events here instead of calling each
// other directly, so collaborators can reconfigure without a hard
// dependency edge (spec §4.8: "raise an event so collaborators can
// reconfigure").
package event

import (
	"fmt"

	"github.com/tgragnato/ftpstls/common/safelog"
)

// TLSEvent is the marker interface every published event satisfies.
type TLSEvent interface {
	IsTLSEvent()
	String() string
}

// EventOnSNIReceived fires when the SNI/HOST reconciler (C8) observes a
// client-sent SNI value, before any virtual-host lookup.
type EventOnSNIReceived struct {
	TLSEvent
	ServerName string
}

func (e EventOnSNIReceived) String() string {
	return fmt.Sprintf("SNI received: %s", e.ServerName)
}

// EventOnContextSwap fires after the TLS context builder rebuilds the
// active context for a new virtual host mid-handshake (C8 step 5).
type EventOnContextSwap struct {
	TLSEvent
	FromSID, ToSID uint32
}

func (e EventOnContextSwap) String() string {
	return fmt.Sprintf("TLS context swapped: sid %d -> %d", e.FromSID, e.ToSID)
}

// EventOnHandshakeComplete fires once a control or data channel handshake
// finishes successfully (C7).
type EventOnHandshakeComplete struct {
	TLSEvent
	Channel          string // "ctrl" or "data"
	NegotiatedProto  string
	NegotiatedCipher string
	Resumed          bool
}

func (e EventOnHandshakeComplete) String() string {
	return fmt.Sprintf("%s handshake complete: %s/%s resumed=%v", e.Channel, e.NegotiatedProto, e.NegotiatedCipher, e.Resumed)
}

// EventOnHandshakeFailed fires when a handshake aborts (C7, §7).
type EventOnHandshakeFailed struct {
	TLSEvent
	Channel string
	Error   error
}

func (e EventOnHandshakeFailed) String() string {
	if e.Error == nil {
		return fmt.Sprintf("%s handshake failed", e.Channel)
	}
	scrubbed := safelog.Scrub([]byte(e.Error.Error()))
	return fmt.Sprintf("%s handshake failed: %s", e.Channel, scrubbed)
}

// EventOnSessionReuseFailed fires when a data channel handshake succeeds
// but fails the control-session-reuse invariant (C7, S3).
type EventOnSessionReuseFailed struct {
	TLSEvent
	Reason string
}

func (e EventOnSessionReuseFailed) String() string {
	return fmt.Sprintf("data TLS session not reused from control: %s", e.Reason)
}

// EventOnTicketKeyRotated fires whenever the ticket ring admits a new key
// (C4).
type EventOnTicketKeyRotated struct {
	TLSEvent
	KeyName [16]byte
	RingLen int
}

func (e EventOnTicketKeyRotated) String() string {
	return fmt.Sprintf("ticket key rotated, ring now holds %d key(s)", e.RingLen)
}

// EventOnOCSPStapled fires once the stapler selects a response to send in
// a handshake (C6), noting whether it is a live response or a fabricated
// tryLater fallback.
type EventOnOCSPStapled struct {
	TLSEvent
	Fabricated bool
}

func (e EventOnOCSPStapled) String() string {
	if e.Fabricated {
		return "OCSP staple: fabricated tryLater (responder unreachable)"
	}
	return "OCSP staple: cached/fetched response"
}

// EventOnCCC fires when a control channel is cleared via the CCC command
// (C10).
type EventOnCCC struct {
	TLSEvent
}

func (e EventOnCCC) String() string {
	return "control channel cleared (CCC)"
}

// EventOnPassphraseAcquired fires once the passphrase store completes an
// acquisition (C1), never carrying the secret itself.
type EventOnPassphraseAcquired struct {
	TLSEvent
	SID  uint32
	Kind string
}

func (e EventOnPassphraseAcquired) String() string {
	return fmt.Sprintf("passphrase acquired for sid=%d kind=%s", e.SID, e.Kind)
}

// TLSEventReceiver receives published events. OnNewTLSEvent MUST not
// block.
type TLSEventReceiver interface {
	OnNewTLSEvent(event TLSEvent)
}

// TLSEventDispatcher fans a published event out to every registered
// receiver.
type TLSEventDispatcher interface {
	TLSEventReceiver
	AddTLSEventListener(receiver TLSEventReceiver)
	RemoveTLSEventListener(receiver TLSEventReceiver)
}
