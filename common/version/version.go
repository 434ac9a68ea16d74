// Package version reports the module's own build version and the
// underlying TLS library's version, the latter surfaced to FTP sessions
// as the TLS_LIBRARY_VERSION note and environment variable (spec §3, §6).
package version

import (
	"fmt"
	"runtime/debug"
)

var version = func() string {
	ver := "1.0.0"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
				return fmt.Sprintf("%v (%v)", ver, setting.Value[:8])
			}
		}
	}
	return ver
}()

// GetVersion returns the core's own build version.
func GetVersion() string {
	return version
}

// tlsLibraryVersion is overridable in tests; in production it reports the
// Go toolchain crypto/tls implementation, since that is the TLS library
// this core treats as an external collaborator (spec §1).
var tlsLibraryVersion = func() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.GoVersion != "" {
		return "Go crypto/tls (" + info.GoVersion + ")"
	}
	return "Go crypto/tls"
}()

// GetTLSLibraryVersion returns the string to publish as TLS_LIBRARY_VERSION.
func GetTLSLibraryVersion() string {
	return tlsLibraryVersion
}
