package tlsctx

import (
	"crypto/tls"

	"github.com/tgragnato/ftpstls/vhost"
)

var curveNameIDs = map[string]tls.CurveID{
	"prime256v1": tls.CurveP256,
	"P-256":      tls.CurveP256,
	"secp384r1":  tls.CurveP384,
	"P-384":      tls.CurveP384,
	"secp521r1":  tls.CurveP521,
	"P-521":      tls.CurveP521,
	"X25519":     tls.X25519,
}

// resolveCurves translates the configured ECDHCurves list into Go's
// CurveID set (spec §4.3 build-step 8). An empty configured list means
// "auto": crypto/tls's own default preference order is left in place by
// returning ok=false, since Go's default already orders X25519 ahead of
// the NIST curves.
func resolveCurves(vh *vhost.VH) ([]tls.CurveID, bool) {
	if len(vh.ECDHCurves) == 0 {
		return nil, false
	}
	var ids []tls.CurveID
	for _, name := range vh.ECDHCurves {
		if id, ok := curveNameIDs[name]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}
