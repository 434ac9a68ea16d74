package ftpstate

import "github.com/tgragnato/ftpstls/vhost"

// dataTransferCommands are the FTP commands that additionally honor a
// per-directory TLSRequired override (spec §4.10).
var dataTransferCommands = map[string]bool{
	"APPE": true, "LIST": true, "MLSD": true,
	"NLST": true, "RETR": true, "STOR": true, "STOU": true,
}

// IsDataTransferCommand reports whether cmd is one of the commands a
// per-directory TLSRequired override applies to.
func IsDataTransferCommand(cmd string) bool {
	return dataTransferCommands[cmd]
}

// CheckDataChannelPolicy runs the pre-dispatch TLSRequired hook for the
// data axis (spec §4.10: "checked on every command via a pre-dispatch
// hook"), honoring dirOverride when cmd is a data-transfer command and
// an override is configured for the current directory.
func CheckDataChannelPolicy(policy vhost.TLSRequiredPolicy, dirOverride *vhost.TLSRequiredMode, cmd string, dataProtected bool) (ok bool, reject Response) {
	mode := policy.Data
	if dirOverride != nil && IsDataTransferCommand(cmd) {
		mode = *dirOverride
	}
	switch mode {
	case vhost.ModeRequired:
		if !dataProtected {
			return false, Response{522, "data channel must be protected"}
		}
	case vhost.ModeForbidden:
		if dataProtected {
			return false, Response{522, "data channel must not be protected"}
		}
	}
	return true, Response{}
}

// CheckProtocolsFilter implements the post-PASS "Protocols" list check
// (spec §6): when configured, a TLS-protected session must have "ftps"
// in the list or the session is disconnected.
func CheckProtocolsFilter(protocols []string, tlsProtected bool) (ok bool, reject Response) {
	if len(protocols) == 0 || !tlsProtected {
		return true, Response{}
	}
	for _, p := range protocols {
		if p == "ftps" {
			return true, Response{}
		}
	}
	return false, Response{550, "ftps not permitted by Protocols configuration"}
}
