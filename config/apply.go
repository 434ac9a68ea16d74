package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/tgragnato/ftpstls/vhost"
)

// GlobalOptions carries the handful of spec §6 directives that apply
// process-wide rather than per virtual host: the ticket key ring's
// rotation parameters and the TLS log file path, since both are owned
// by singletons (the ticket Ring, the log sink) rather than per-VH
// TLS contexts.
type GlobalOptions struct {
	TicketKeyMaxAge   time.Duration
	TicketKeyMaxCount int
	LogPath           string
}

// Apply mutates vh and global according to directives, in file order.
// Directives unrelated to vh/global scope (there are none in spec §6's
// list; this guards future additions) are rejected with an error naming
// the line, matching proftpd's own "unknown configuration directive"
// fatal-at-parse-time behavior rather than silently ignoring typos in a
// cert path directive that would otherwise leave a VH without a key.
func Apply(vh *vhost.VH, global *GlobalOptions, directives []Directive) error {
	for _, d := range directives {
		if err := applyOne(vh, global, d); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(vh *vhost.VH, global *GlobalOptions, d Directive) error {
	switch d.Name {
	case "TLSRSACertificateFile":
		return setPath(d, &vh.RSACertFile)
	case "TLSRSAKeyFile":
		return setPath(d, &vh.RSAKeyFile)
	case "TLSDSACertificateFile":
		return setPath(d, &vh.DSACertFile)
	case "TLSDSAKeyFile":
		return setPath(d, &vh.DSAKeyFile)
	case "TLSECCertificateFile":
		return setPath(d, &vh.ECCertFile)
	case "TLSECKeyFile":
		return setPath(d, &vh.ECKeyFile)
	case "TLSPKCS12File":
		return setPath(d, &vh.PKCS12File)
	case "TLSCertificateChainFile":
		return setPath(d, &vh.CertificateChainFile)

	case "TLSCACertificateFile":
		return setPath(d, &vh.CACertificateFile)
	case "TLSCACertificatePath":
		return setPath(d, &vh.CAPath)
	case "TLSCARevocationFile":
		return setPath(d, &vh.CARevocationFile)
	case "TLSCARevocationPath":
		return setPath(d, &vh.CARevocationPath)

	case "TLSProtocol":
		min, max, err := parseProtocol(d.Args)
		if err != nil {
			return d.errf("%v", err)
		}
		vh.MinProtocolVersion, vh.MaxProtocolVersion = min, max
		return nil
	case "TLSCipherSuite":
		return applyCipherSuite(vh, d)
	case "TLSECDHCurve":
		vh.ECDHCurves = append([]string(nil), d.Args...)
		return nil
	case "TLSDHParamFile":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.DHParamFiles = append(vh.DHParamFiles, v)
		return nil
	case "TLSNextProtocol":
		// The spec's only supported ALPN protocol is "ftp" (builder
		// step 9); this directive is recognized for compatibility but
		// the value isn't user-selectable, so it's accepted and
		// discarded.
		return nil
	case "TLSServerCipherPreference":
		b, err := d.onOff()
		if err != nil {
			return err
		}
		vh.ServerCipherPreference = b
		return nil
	case "TLSServerInfoFile":
		// Recognized; Go's crypto/tls has no server-info-file concept
		// (OpenSSL-specific extension data), so no field carries it.
		return nil
	case "TLSPreSharedKey":
		if len(d.Args) < 2 {
			return d.errf("expected identity and hex:path, got %d args", len(d.Args))
		}
		path := d.Args[1]
		if !strings.HasPrefix(path, "hex:") {
			return d.errf("PSK path must start with %q", "hex:")
		}
		vh.PSKFile = path
		return nil

	case "TLSRenegotiate":
		return applyRenegotiate(vh, d)

	case "TLSRequired":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		pol, err := vhost.ParseTLSRequired(v)
		if err != nil {
			return d.errf("%v", err)
		}
		vh.TLSRequired = pol
		return nil
	case "TLSVerifyClient":
		return applyVerifyMode(d, &vh.VerifyClient)
	case "TLSVerifyServer":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		if strings.EqualFold(v, "NoReverseDNS") {
			vh.VerifyServer = vhost.VerifyOn
			vh.VerifyServerNoDNS = true
			return nil
		}
		return applyVerifyMode(d, &vh.VerifyServer)
	case "TLSVerifyDepth":
		n, err := d.intArg(0)
		if err != nil {
			return err
		}
		vh.VerifyDepth = n
		return nil
	case "TLSVerifyOrder":
		if len(d.Args) == 0 {
			return d.errf("expected at least one mechanism")
		}
		vh.VerifyOrder = append([]string(nil), d.Args...)
		return nil
	case "TLSUserName":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.TLSUserNameAttr = v
		return nil

	case "TLSSessionCache":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		spec := v
		if len(d.Args) > 1 {
			spec = v + " " + strings.Join(d.Args[1:], " ")
		}
		vh.SessionCacheSpec = spec
		return nil
	case "TLSSessionTickets":
		b, err := d.onOff()
		if err != nil {
			return err
		}
		vh.SessionTicketsEnabled = b
		return nil
	case "TLSSessionTicketKeys":
		return applySessionTicketKeys(global, d)

	case "TLSStapling":
		b, err := d.onOff()
		if err != nil {
			return err
		}
		vh.StaplingEnabled = b
		return nil
	case "TLSStaplingCache":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.StaplingCacheSpec = v
		return nil
	case "TLSStaplingResponder":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.StaplingResponder = v
		return nil
	case "TLSStaplingTimeout":
		secs, err := d.intArg(0)
		if err != nil {
			return err
		}
		vh.StaplingTimeout = time.Duration(secs) * time.Second
		return nil
	case "TLSStaplingOptions":
		return applyStaplingOptions(vh, d)

	case "TLSOptions":
		return applyOptionsBitset(vh, d)

	case "TLSEngine":
		b, err := d.onOff()
		if err != nil {
			return err
		}
		vh.TLSEngine = b
		return nil
	case "TLSLog":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		if global != nil {
			global.LogPath = v
		}
		return nil
	case "TLSTimeoutHandshake":
		secs, err := d.intArg(0)
		if err != nil {
			return err
		}
		vh.TimeoutHandshake = time.Duration(secs) * time.Second
		return nil
	case "TLSRandomSeed":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.RandomSeedPath = v
		return nil
	case "TLSMasqueradeAddress":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.MasqueradeAddress = v
		return nil
	case "TLSPassPhraseProvider":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.PassPhraseProviderPath = v
		return nil
	case "TLSCryptoDevice":
		v, err := d.arg(0)
		if err != nil {
			return err
		}
		vh.CryptoDeviceName = v
		return nil

	case "Protocols":
		vh.Protocols = append([]string(nil), d.Args...)
		return nil

	default:
		return d.errf("unknown directive")
	}
}

func setPath(d Directive, dst *string) error {
	v, err := d.arg(0)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (d Directive) intArg(i int) (int, error) {
	v, err := d.arg(i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, d.errf("expected an integer, got %q", v)
	}
	return n, nil
}

func applyVerifyMode(d Directive, dst *vhost.VerifyMode) error {
	v, err := d.arg(0)
	if err != nil {
		return err
	}
	switch strings.ToLower(v) {
	case "on":
		*dst = vhost.VerifyOn
	case "off":
		*dst = vhost.VerifyOff
	case "optional":
		*dst = vhost.VerifyOptional
	default:
		return d.errf("expected on|off|optional, got %q", v)
	}
	return nil
}

func applyCipherSuite(vh *vhost.VH, d Directive) error {
	if len(d.Args) == 0 {
		return d.errf("expected a cipher list")
	}
	if vh.CipherSuites == nil {
		vh.CipherSuites = make(map[string]string)
	}
	// "TLSCipherSuite PROTO list" splits by protocol; "TLSCipherSuite
	// list" (one argument, containing ':') applies regardless of
	// negotiated version (builder step 6's unsplit form).
	if len(d.Args) == 1 {
		vh.CipherSuites[""] = d.Args[0]
		return nil
	}
	vh.CipherSuites[d.Args[0]] = strings.Join(d.Args[1:], "")
	return nil
}

func applyRenegotiate(vh *vhost.VH, d Directive) error {
	if len(d.Args) == 1 && strings.EqualFold(d.Args[0], "none") {
		vh.Renegotiate = vhost.RenegotiatePolicy{Allowed: false}
		return nil
	}
	pol := vhost.RenegotiatePolicy{Allowed: true}
	args := d.Args
	for i := 0; i+1 < len(args); i += 2 {
		key, val := strings.ToLower(args[i]), args[i+1]
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return d.errf("expected an integer for %q, got %q", key, val)
		}
		switch key {
		case "ctrl":
			pol.CtrlByteLimit = n
		case "data":
			pol.DataByteLimit = n
		case "required":
			pol.RequiredBefore = n
		case "timeout":
			pol.Timeout = time.Duration(n) * time.Second
		default:
			return d.errf("unrecognized TLSRenegotiate keyword %q", key)
		}
	}
	vh.Renegotiate = pol
	return nil
}

func applySessionTicketKeys(global *GlobalOptions, d Directive) error {
	args := d.Args
	for i := 0; i+1 < len(args); i += 2 {
		key, val := strings.ToLower(args[i]), args[i+1]
		n, err := strconv.Atoi(val)
		if err != nil {
			return d.errf("expected an integer for %q, got %q", key, val)
		}
		switch key {
		case "age":
			if global != nil {
				global.TicketKeyMaxAge = time.Duration(n) * time.Second
			}
		case "count":
			if global != nil {
				global.TicketKeyMaxCount = n
			}
		default:
			return d.errf("unrecognized TLSSessionTicketKeys keyword %q", key)
		}
	}
	return nil
}

func applyStaplingOptions(vh *vhost.VH, d Directive) error {
	for _, a := range d.Args {
		switch strings.TrimSuffix(a, ",") {
		case "NoNonce":
			vh.StaplingNoNonce = true
		case "NoVerify":
			vh.StaplingNoVerify = true
		case "NoFakeTryLater":
			vh.StaplingNoFakeTryLater = true
		default:
			return d.errf("unrecognized TLSStaplingOptions value %q", a)
		}
	}
	return nil
}

// optionsBitsetFields maps the TLSOptions directive's token names to a
// setter on vhost.Options, so the dispatch table doesn't need one
// case per flag.
var optionsBitsetFields = map[string]func(*vhost.Options){
	"AllowDotLogin":             func(o *vhost.Options) { o.AllowDotLogin = true },
	"AllowPerUser":              func(o *vhost.Options) { o.AllowPerUser = true },
	"AllowWeakDH":               func(o *vhost.Options) { o.AllowWeakDH = true },
	"AllowWeakSecurity":         func(o *vhost.Options) { o.AllowWeakSecurity = true },
	"AllowClientRenegotiations": func(o *vhost.Options) { o.AllowClientRenegotiations = true },
	"EnableDiags":               func(o *vhost.Options) { o.EnableDiags = true },
	"ExportCertData":            func(o *vhost.Options) { o.ExportCertData = true },
	"IgnoreSNI":                 func(o *vhost.Options) { o.IgnoreSNI = true },
	"NoEmptyFragments":          func(o *vhost.Options) { o.NoEmptyFragments = true },
	"NoSessionReuseRequired":    func(o *vhost.Options) { o.NoSessionReuseRequired = true },
	"StdEnvVars":                func(o *vhost.Options) { o.StdEnvVars = true },
	"dNSNameRequired":           func(o *vhost.Options) { o.DNSNameRequired = true },
	"iPAddressRequired":         func(o *vhost.Options) { o.IPAddressRequired = true },
	"CommonNameRequired":        func(o *vhost.Options) { o.CommonNameRequired = true },
	"UseImplicitSSL":            func(o *vhost.Options) { o.UseImplicitSSL = true },
	"NoAutoECDH":                func(o *vhost.Options) { o.NoAutoECDH = true },
}

func applyOptionsBitset(vh *vhost.VH, d Directive) error {
	if len(d.Args) == 0 {
		return d.errf("expected at least one option name")
	}
	for _, a := range d.Args {
		name := strings.TrimSuffix(a, ",")
		set, ok := optionsBitsetFields[name]
		if !ok {
			return d.errf("unrecognized TLSOptions value %q", name)
		}
		set(&vh.Options)
	}
	return nil
}
