package broadcast

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes session lifecycle events.
type Metrics interface {
	SessionStarted()
	SessionEnded(reason string)
	StartFailed(kind string)
	CandidateSent(err error)
	ObserveNegotiation(d time.Duration)
}

// PrometheusMetrics implements Metrics with prometheus collectors.
type PrometheusMetrics struct {
	sessionsActive     prometheus.Gauge
	sessionsStarted    prometheus.Counter
	sessionsEnded      *prometheus.CounterVec
	startFailures      *prometheus.CounterVec
	candidates         *prometheus.CounterVec
	negotiationSeconds prometheus.Histogram
}

// NewPrometheusMetrics registers the controller collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldhouse_broadcast_sessions_active",
			Help: "Number of connected broadcast sessions",
		}),
		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldhouse_broadcast_sessions_started_total",
			Help: "Total number of broadcast sessions that reached connected",
		}),
		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldhouse_broadcast_sessions_ended_total",
			Help: "Total number of ended broadcast sessions",
		}, []string{"reason"}),
		startFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldhouse_broadcast_start_failures_total",
			Help: "Total number of failed starts",
		}, []string{"kind"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldhouse_broadcast_candidates_total",
			Help: "Total number of trickled ICE candidates",
		}, []string{"result"}),
		negotiationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldhouse_broadcast_negotiation_duration_seconds",
			Help:    "Duration of the offer/answer exchange",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *PrometheusMetrics) SessionStarted() {
	m.sessionsActive.Inc()
	m.sessionsStarted.Inc()
}

func (m *PrometheusMetrics) SessionEnded(reason string) {
	m.sessionsActive.Dec()
	m.sessionsEnded.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) StartFailed(kind string) {
	m.startFailures.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) CandidateSent(err error) {
	if err != nil {
		m.candidates.WithLabelValues("failed").Inc()
		return
	}
	m.candidates.WithLabelValues("sent").Inc()
}

func (m *PrometheusMetrics) ObserveNegotiation(d time.Duration) {
	m.negotiationSeconds.Observe(d.Seconds())
}

type noopMetrics struct{}

func (noopMetrics) SessionStarted()                  {}
func (noopMetrics) SessionEnded(string)              {}
func (noopMetrics) StartFailed(string)               {}
func (noopMetrics) CandidateSent(error)              {}
func (noopMetrics) ObserveNegotiation(time.Duration) {}
