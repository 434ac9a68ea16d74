package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tgragnato/ftpstls/vhost"
)

func TestParseSkipsBlankAndCommentLines(t *testing.T) {
	directives, err := ParseString("\n# a comment\nTLSEngine on\n   \n")
	require.NoError(t, err)
	require.Len(t, directives, 1)
	require.Equal(t, "TLSEngine", directives[0].Name)
	require.Equal(t, []string{"on"}, directives[0].Args)
}

func TestApplyCredentialsAndTrust(t *testing.T) {
	directives, err := ParseString(`
TLSRSACertificateFile /etc/ftps/rsa.crt
TLSRSAKeyFile /etc/ftps/rsa.key
TLSCACertificateFile /etc/ftps/ca.crt
TLSCARevocationPath /etc/ftps/crl
`)
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.Equal(t, "/etc/ftps/rsa.crt", vh.RSACertFile)
	require.Equal(t, "/etc/ftps/rsa.key", vh.RSAKeyFile)
	require.Equal(t, "/etc/ftps/ca.crt", vh.CACertificateFile)
	require.Equal(t, "/etc/ftps/crl", vh.CARevocationPath)
}

func TestApplyTLSRequiredAndVerifyClient(t *testing.T) {
	directives, err := ParseString(`
TLSRequired auth+data
TLSVerifyClient optional
TLSVerifyDepth 3
`)
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.Equal(t, vhost.ModeRequired, vh.TLSRequired.Auth)
	require.Equal(t, vhost.ModeRequired, vh.TLSRequired.Data)
	require.Equal(t, vhost.VerifyOptional, vh.VerifyClient)
	require.Equal(t, 3, vh.VerifyDepth)
}

func TestApplyTLSProtocolAdditiveSubtractive(t *testing.T) {
	directives, err := ParseString("TLSProtocol +TLSv1.2 +TLSv1.3 -TLSv1.2\n")
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.EqualValues(t, 0x0304, vh.MinProtocolVersion) // tls.VersionTLS13
	require.EqualValues(t, 0x0304, vh.MaxProtocolVersion)
}

func TestApplyTLSOptionsBitset(t *testing.T) {
	directives, err := ParseString("TLSOptions AllowPerUser, StdEnvVars NoAutoECDH\n")
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.True(t, vh.Options.AllowPerUser)
	require.True(t, vh.Options.StdEnvVars)
	require.True(t, vh.Options.NoAutoECDH)
	require.False(t, vh.Options.AllowWeakDH)
}

func TestApplyTLSRenegotiateFields(t *testing.T) {
	directives, err := ParseString("TLSRenegotiate ctrl 1048576 data 10485760 required 3 timeout 30\n")
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.True(t, vh.Renegotiate.Allowed)
	require.EqualValues(t, 1048576, vh.Renegotiate.CtrlByteLimit)
	require.EqualValues(t, 10485760, vh.Renegotiate.DataByteLimit)
	require.Equal(t, 30*time.Second, vh.Renegotiate.Timeout)
}

func TestApplyTLSRenegotiateNone(t *testing.T) {
	directives, err := ParseString("TLSRenegotiate none\n")
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.False(t, vh.Renegotiate.Allowed)
}

func TestApplySessionTicketKeysUpdatesGlobal(t *testing.T) {
	directives, err := ParseString("TLSSessionTicketKeys age 7200 count 5\n")
	require.NoError(t, err)
	var global GlobalOptions
	require.NoError(t, Apply(&vhost.VH{}, &global, directives))
	require.Equal(t, 2*time.Hour, global.TicketKeyMaxAge)
	require.Equal(t, 5, global.TicketKeyMaxCount)
}

func TestApplyUnknownDirectiveErrors(t *testing.T) {
	directives, err := ParseString("TLSBogusDirective foo\n")
	require.NoError(t, err)
	err = Apply(&vhost.VH{}, nil, directives)
	require.Error(t, err)
}

func TestApplyStaplingDirectives(t *testing.T) {
	directives, err := ParseString(`
TLSStapling on
TLSStaplingResponder http://ocsp.example.com
TLSStaplingTimeout 5
TLSStaplingOptions NoNonce, NoFakeTryLater
`)
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.True(t, vh.StaplingEnabled)
	require.Equal(t, "http://ocsp.example.com", vh.StaplingResponder)
	require.Equal(t, 5*time.Second, vh.StaplingTimeout)
	require.True(t, vh.StaplingNoNonce)
	require.True(t, vh.StaplingNoFakeTryLater)
	require.False(t, vh.StaplingNoVerify)
}

func TestApplyProtocolsFilter(t *testing.T) {
	directives, err := ParseString("Protocols ftp ftps\n")
	require.NoError(t, err)
	vh := &vhost.VH{}
	require.NoError(t, Apply(vh, nil, directives))
	require.Equal(t, []string{"ftp", "ftps"}, vh.Protocols)
}
