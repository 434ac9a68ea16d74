// Package metrics exposes Prometheus counters for the FTPS TLS core,
// adapted from the teacher's proxy metrics (proxy/lib/metrics.go) onto
// handshake, ticket, OCSP, and session-reuse outcomes instead of
// WebRTC/rendezvous connection counts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricNamespace = "ftps_tls_core"

// Metrics holds every counter/gauge the TLS core publishes.
type Metrics struct {
	HandshakesTotal        *prometheus.CounterVec
	HandshakeFailuresTotal *prometheus.CounterVec
	SessionReuseFailures   prometheus.Counter
	TicketKeyRotations     prometheus.Counter
	TicketKeysInRing       prometheus.Gauge
	OCSPCacheHits          prometheus.Counter
	OCSPCacheMisses        prometheus.Counter
	OCSPFabricatedStaples  prometheus.Counter
	InboundTrafficBytes    prometheus.Counter
	OutboundTrafficBytes   prometheus.Counter
}

// NewMetrics creates a fresh, unregistered set of collectors. Call
// Register to attach them to a prometheus.Registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		HandshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "handshakes_total",
			Help:      "Completed TLS handshakes by channel (ctrl/data).",
		}, []string{"channel"}),
		HandshakeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "handshake_failures_total",
			Help:      "Failed TLS handshakes by channel and error kind.",
		}, []string{"channel", "kind"}),
		SessionReuseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "session_reuse_failures_total",
			Help:      "Data channel handshakes rejected for not reusing the control session.",
		}),
		TicketKeyRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "ticket_key_rotations_total",
			Help:      "Session ticket key ring admissions.",
		}),
		TicketKeysInRing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "ticket_keys_in_ring",
			Help:      "Current number of live session ticket keys.",
		}),
		OCSPCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "ocsp_cache_hits_total",
			Help:      "OCSP responses served from cache without a staleness refetch.",
		}),
		OCSPCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "ocsp_cache_misses_total",
			Help:      "OCSP responses that required a fetch from the responder.",
		}),
		OCSPFabricatedStaples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "ocsp_fabricated_staples_total",
			Help:      "Handshakes that stapled a fabricated tryLater response.",
		}),
		InboundTrafficBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "traffic_inbound_bytes_total",
			Help:      "Raw bytes read across all TLS channels, including handshake bytes.",
		}),
		OutboundTrafficBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "traffic_outbound_bytes_total",
			Help:      "Raw bytes written across all TLS channels, including handshake bytes.",
		}),
	}
}

// Register attaches every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HandshakesTotal, m.HandshakeFailuresTotal, m.SessionReuseFailures,
		m.TicketKeyRotations, m.TicketKeysInRing, m.OCSPCacheHits,
		m.OCSPCacheMisses, m.OCSPFabricatedStaples, m.InboundTrafficBytes,
		m.OutboundTrafficBytes,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Start registers the default collectors and serves them at addr.
func (m *Metrics) Start(addr string) error {
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/internal/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			panic(err)
		}
	}()
	return nil
}
