// Package vhost holds the virtual-host data model (spec §3): the stable
// identity a TLS context, credential bundle, and set of options are
// assembled for, plus the FTPS session flags bitset and TLSRequired
// policy every command passes through.
package vhost

import (
	"fmt"
	"strings"
	"time"
)

// SID is a virtual host's stable, non-zero numeric server id.
type SID uint32

// CredentialKind identifies which certificate slot a loaded key/cert
// pair belongs to.
type CredentialKind int

const (
	KindRSA CredentialKind = iota
	KindDSA
	KindEC
	KindPKCS12
)

func (k CredentialKind) String() string {
	switch k {
	case KindRSA:
		return "RSA"
	case KindDSA:
		return "DSA"
	case KindEC:
		return "EC"
	case KindPKCS12:
		return "PKCS12"
	default:
		return "unknown"
	}
}

// TLSRequiredMode is one value of the three independent TLSRequired axes
// (spec §4.10).
type TLSRequiredMode int

const (
	ModeForbidden TLSRequiredMode = iota
	ModeAllowed
	ModeRequired
)

// TLSRequiredPolicy carries the three independent axes spec §4.10
// describes: control channel, data channel, and the USER/PASS/ACCT
// authentication exchange. A per-directory override may further
// restrict the data axis for specific transfer commands.
type TLSRequiredPolicy struct {
	Ctrl TLSRequiredMode
	Data TLSRequiredMode
	Auth TLSRequiredMode
}

// ParseTLSRequired parses the directive syntax from spec §6:
// on|off|both|ctrl|data|!data|auth|ctrl+data|auth+data|auth+!data.
func ParseTLSRequired(s string) (TLSRequiredPolicy, error) {
	switch s {
	case "on", "both":
		return TLSRequiredPolicy{Ctrl: ModeRequired, Data: ModeRequired, Auth: ModeAllowed}, nil
	case "off":
		return TLSRequiredPolicy{Ctrl: ModeAllowed, Data: ModeAllowed, Auth: ModeAllowed}, nil
	case "ctrl":
		return TLSRequiredPolicy{Ctrl: ModeRequired, Data: ModeAllowed, Auth: ModeAllowed}, nil
	case "data":
		return TLSRequiredPolicy{Ctrl: ModeAllowed, Data: ModeRequired, Auth: ModeAllowed}, nil
	case "!data":
		return TLSRequiredPolicy{Ctrl: ModeAllowed, Data: ModeForbidden, Auth: ModeAllowed}, nil
	case "auth":
		return TLSRequiredPolicy{Ctrl: ModeAllowed, Data: ModeAllowed, Auth: ModeRequired}, nil
	case "ctrl+data":
		return TLSRequiredPolicy{Ctrl: ModeRequired, Data: ModeRequired, Auth: ModeAllowed}, nil
	case "auth+data":
		return TLSRequiredPolicy{Ctrl: ModeAllowed, Data: ModeRequired, Auth: ModeRequired}, nil
	case "auth+!data":
		return TLSRequiredPolicy{Ctrl: ModeAllowed, Data: ModeForbidden, Auth: ModeRequired}, nil
	default:
		return TLSRequiredPolicy{}, fmt.Errorf("vhost: unrecognized TLSRequired directive %q", s)
	}
}

// Flag is one bit of the FTPS session flags bitset (spec §3).
type Flag uint32

const (
	FlagOnCtrl Flag = 1 << iota
	FlagOnData
	FlagPBSZOk
	FlagTLSRequired
	FlagVerifyClientRequired
	FlagNoPasswdNeeded
	FlagNeedDataProt
	FlagCtrlRenegotiating
	FlagDataRenegotiating
	FlagHaveCCC
	FlagVerifyServer
	FlagVerifyServerNoDNS
	FlagVerifyClientOptional
)

// Flags is the named bit-field struct spec §9 asks for in place of a
// loose integer, with invariants enforced in its setters rather than
// left to callers.
type Flags struct {
	bits Flag
}

func (f *Flags) Has(flag Flag) bool { return f.bits&flag != 0 }

// Set raises flag, enforcing the invariants from spec §3:
// HAVE_CCC implies not ON_CTRL; NEED_DATA_PROT implies ON_CTRL or
// HAVE_CCC; at most one of VERIFY_CLIENT_REQUIRED/VERIFY_CLIENT_OPTIONAL.
func (f *Flags) Set(flag Flag) error {
	switch flag {
	case FlagHaveCCC:
		f.bits &^= FlagOnCtrl
	case FlagOnCtrl:
		if f.bits&FlagHaveCCC != 0 {
			return fmt.Errorf("vhost: cannot set ON_CTRL while HAVE_CCC is set")
		}
	case FlagNeedDataProt:
		if f.bits&(FlagOnCtrl|FlagHaveCCC) == 0 {
			return fmt.Errorf("vhost: NEED_DATA_PROT requires ON_CTRL or HAVE_CCC")
		}
	case FlagVerifyClientRequired:
		f.bits &^= FlagVerifyClientOptional
	case FlagVerifyClientOptional:
		f.bits &^= FlagVerifyClientRequired
	}
	f.bits |= flag
	return nil
}

func (f *Flags) Clear(flag Flag) { f.bits &^= flag }

// Options is the per-VH options bitset from the TLSOptions directive
// (spec §6), plus the scalar options configured alongside it.
type Options struct {
	AllowDotLogin             bool
	AllowPerUser              bool
	AllowWeakDH               bool
	AllowWeakSecurity         bool
	AllowClientRenegotiations bool
	EnableDiags               bool
	ExportCertData            bool
	IgnoreSNI                 bool
	NoEmptyFragments          bool
	NoSessionReuseRequired    bool
	StdEnvVars                bool
	DNSNameRequired           bool
	IPAddressRequired         bool
	CommonNameRequired        bool
	UseImplicitSSL            bool
	NoAutoECDH                bool
}

// RenegotiatePolicy mirrors the TLSRenegotiate directive (spec §6):
// "ctrl N data K required B timeout T", or "none" (Allowed=false).
type RenegotiatePolicy struct {
	Allowed         bool
	CtrlByteLimit   int64
	DataByteLimit   int64
	RequiredBefore  int64
	Timeout         time.Duration
}

// VerifyMode mirrors TLSVerifyClient {on|off|optional}.
type VerifyMode int

const (
	VerifyOff VerifyMode = iota
	VerifyOn
	VerifyOptional
)

// VH is a single virtual host: a stable identity plus the configured
// options, credential paths, and cache provider references that the TLS
// context builder (C3) consumes.
type VH struct {
	SID  SID
	Name string

	Options Options
	TLSRequired TLSRequiredPolicy

	VerifyClient      VerifyMode
	VerifyServer      VerifyMode
	VerifyServerNoDNS bool
	VerifyDepth       int
	VerifyOrder       []string // subset/order of {"crl", "ocsp"}

	TLSUserNameAttr string // "CommonName", "EmailSubjAltName", or a numeric OID

	RSACertFile, RSAKeyFile       string
	DSACertFile, DSAKeyFile       string
	ECCertFile, ECKeyFile         string
	PKCS12File                    string
	CertificateChainFile          string
	CACertificateFile, CAPath     string
	CARevocationFile, CARevocationPath string
	DHParamFiles                  []string
	PSKFile                       string

	CipherSuites      map[string]string // protocol -> cipher list string, "" key = unsplit
	ECDHCurves        []string          // empty means "auto"
	ServerCipherPreference bool

	MinProtocolVersion uint16
	MaxProtocolVersion uint16

	SessionTicketsEnabled bool
	SessionCacheSpec      string // "type:info[ timeout]"

	StaplingEnabled  bool
	StaplingCacheSpec string
	StaplingResponder string
	StaplingTimeout   time.Duration
	StaplingNoNonce, StaplingNoVerify, StaplingNoFakeTryLater bool

	Renegotiate RenegotiatePolicy

	// Protocols restricts which session-level protocols a TLS-protected
	// session may continue as (spec §6's post-PASS Protocols filter);
	// empty means unrestricted.
	Protocols []string

	// TLSEngine gates whether this VH's TLS context is built at all;
	// "TLSEngine off" lets a VH exist (e.g. during a staged rollout)
	// without ever negotiating TLS.
	TLSEngine bool

	TimeoutHandshake time.Duration

	PassPhraseProviderPath string
	RandomSeedPath         string

	// MasqueradeAddress is the address this VH advertises for its own
	// identity during VERIFY_SERVER reverse-DNS handling (spec §3/§6),
	// used when the server sits behind NAT.
	MasqueradeAddress string

	// CryptoDeviceName records TLSCryptoDevice; Go's crypto/tls has no
	// engine-delegation concept, so this is validated and carried but
	// never dereferenced by tlsctx (see DESIGN.md).
	CryptoDeviceName string
}

// Manager resolves virtual hosts by server name for the SNI/HOST
// reconciler (C8).
type Manager struct {
	byName map[string]*VH
	bySID  map[SID]*VH
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]*VH), bySID: make(map[SID]*VH)}
}

// Register adds or replaces vh, indexed by name and sid.
func (m *Manager) Register(vh *VH) {
	m.byName[normalizeName(vh.Name)] = vh
	m.bySID[vh.SID] = vh
}

// Remove drops vh from both indices.
func (m *Manager) Remove(sid SID) {
	if vh, ok := m.bySID[sid]; ok {
		delete(m.byName, normalizeName(vh.Name))
		delete(m.bySID, sid)
	}
}

// Lookup resolves a case-insensitive server name to its VH.
func (m *Manager) Lookup(name string) (*VH, bool) {
	vh, ok := m.byName[normalizeName(name)]
	return vh, ok
}

// BySID resolves a VH by its stable id.
func (m *Manager) BySID(sid SID) (*VH, bool) {
	vh, ok := m.bySID[sid]
	return vh, ok
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}
