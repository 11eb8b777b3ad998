package signalserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	offers         *prometheus.CounterVec
	candidates     *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	rtpPackets     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		offers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldhouse_signal_offers_total",
			Help: "Total number of received offers",
		}, []string{"result"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldhouse_signal_candidates_total",
			Help: "Total number of received ICE candidates",
		}, []string{"result"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldhouse_signal_sessions_active",
			Help: "Number of answered sessions",
		}),
		rtpPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldhouse_signal_rtp_packets_total",
			Help: "Total number of received RTP packets",
		}, []string{"kind"}),
	}
}
