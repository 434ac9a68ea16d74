package ftpstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tgragnato/ftpstls/ioswitch"
	"github.com/tgragnato/ftpstls/vhost"
)

func TestHandlePBSZAcceptsZero(t *testing.T) {
	m := &Machine{State: StateSecured}
	resp := m.HandlePBSZ(0)
	require.Equal(t, 200, resp.Code)
	require.True(t, m.Flags.Has(vhost.FlagPBSZOk))
}

func TestHandlePBSZRejectedBeforeAuth(t *testing.T) {
	m := &Machine{State: StatePlain}
	resp := m.HandlePBSZ(0)
	require.Equal(t, 503, resp.Code)
}

func TestHandlePBSZAcceptsNonZeroWithNote(t *testing.T) {
	m := &Machine{State: StateSecured}
	resp := m.HandlePBSZ(1024)
	require.Equal(t, 200, resp.Code)
}

func TestHandlePROTCRequiresPolicyAllows(t *testing.T) {
	m := &Machine{State: StateSecured, VH: &vhost.VH{TLSRequired: vhost.TLSRequiredPolicy{Data: vhost.ModeRequired}}}
	resp := m.HandlePROT("C")
	require.Equal(t, 534, resp.Code)
}

func TestHandlePROTPSetsFlag(t *testing.T) {
	m := &Machine{State: StateSecured, VH: &vhost.VH{}}
	resp := m.HandlePROT("P")
	require.Equal(t, 200, resp.Code)
	require.True(t, m.Flags.Has(vhost.FlagNeedDataProt))
}

func TestHandlePROTUnsupportedLevel(t *testing.T) {
	m := &Machine{State: StateSecured, VH: &vhost.VH{}}
	resp := m.HandlePROT("E")
	require.Equal(t, 536, resp.Code)
}

func TestHandleCCCRejectedWhenCtrlRequired(t *testing.T) {
	m := &Machine{State: StateSecured, VH: &vhost.VH{TLSRequired: vhost.TLSRequiredPolicy{Ctrl: vhost.ModeRequired}}}
	resp := m.HandleCCC(nil) //nolint:staticcheck // policy check runs before any context use.
	require.Equal(t, 534, resp.Code)
}

func TestHandleSSCNQueryAndToggle(t *testing.T) {
	m := &Machine{}
	resp, mode := m.HandleSSCN("", ioswitch.SSCNServer)
	require.Equal(t, 200, resp.Code)
	require.Equal(t, ioswitch.SSCNServer, mode)

	resp, mode = m.HandleSSCN("ON", ioswitch.SSCNServer)
	require.Equal(t, 200, resp.Code)
	require.Equal(t, ioswitch.SSCNClient, mode)
}

func TestCheckAuthPolicyRejectsWhenNotOnCtrl(t *testing.T) {
	m := &Machine{VH: &vhost.VH{TLSRequired: vhost.TLSRequiredPolicy{Auth: vhost.ModeRequired}}}
	ok, resp := m.CheckAuthPolicy(false)
	require.False(t, ok)
	require.Equal(t, 550, resp.Code)
}

func TestCheckAuthPolicyAllowsWhenOnCtrl(t *testing.T) {
	m := &Machine{VH: &vhost.VH{TLSRequired: vhost.TLSRequiredPolicy{Auth: vhost.ModeRequired}}}
	require.NoError(t, m.Flags.Set(vhost.FlagOnCtrl))
	ok, _ := m.CheckAuthPolicy(false)
	require.True(t, ok)
}
