package vhost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTLSRequired(t *testing.T) {
	cases := map[string]TLSRequiredPolicy{
		"on":         {Ctrl: ModeRequired, Data: ModeRequired, Auth: ModeAllowed},
		"off":        {Ctrl: ModeAllowed, Data: ModeAllowed, Auth: ModeAllowed},
		"ctrl":       {Ctrl: ModeRequired, Data: ModeAllowed, Auth: ModeAllowed},
		"!data":      {Ctrl: ModeAllowed, Data: ModeForbidden, Auth: ModeAllowed},
		"auth+!data": {Ctrl: ModeAllowed, Data: ModeForbidden, Auth: ModeRequired},
	}
	for in, want := range cases {
		got, err := ParseTLSRequired(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseTLSRequired("bogus")
	require.Error(t, err)
}

func TestFlagsInvariants(t *testing.T) {
	var f Flags
	require.NoError(t, f.Set(FlagOnCtrl))
	require.True(t, f.Has(FlagOnCtrl))

	require.NoError(t, f.Set(FlagHaveCCC))
	require.False(t, f.Has(FlagOnCtrl), "HAVE_CCC must clear ON_CTRL")
	require.True(t, f.Has(FlagHaveCCC))

	var g Flags
	require.Error(t, g.Set(FlagNeedDataProt), "NEED_DATA_PROT requires ON_CTRL or HAVE_CCC")
	require.NoError(t, g.Set(FlagOnCtrl))
	require.NoError(t, g.Set(FlagNeedDataProt))

	var h Flags
	require.NoError(t, h.Set(FlagVerifyClientRequired))
	require.NoError(t, h.Set(FlagVerifyClientOptional))
	require.False(t, h.Has(FlagVerifyClientRequired))
	require.True(t, h.Has(FlagVerifyClientOptional))
}

func TestManagerLookupCaseInsensitive(t *testing.T) {
	m := NewManager()
	vh := &VH{SID: 1, Name: "FTP.Example.com"}
	m.Register(vh)

	got, ok := m.Lookup("ftp.example.com")
	require.True(t, ok)
	require.Equal(t, vh, got)

	_, ok = m.BySID(1)
	require.True(t, ok)

	m.Remove(1)
	_, ok = m.Lookup("ftp.example.com")
	require.False(t, ok)
}
