package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LeaseMetrics tracks the lease host: state transitions, DEX recovery and
// handler outcomes.
type LeaseMetrics struct {
	transitions  *prometheus.CounterVec
	dexTimeouts  *prometheus.CounterVec
	anomalies    *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	errors       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	dispatched   *prometheus.CounterVec
}

var (
	leaseOnce     sync.Once
	leaseRegistry *LeaseMetrics
)

func Lease() *LeaseMetrics {
	leaseOnce.Do(func() {
		leaseRegistry = &LeaseMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lease_transitions_total",
				Help: "Count of lease state transitions by source and target state.",
			}, []string{"from", "to"}),
			dexTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lease_dex_timeouts_total",
				Help: "Count of DEX requests that timed out, by task stage.",
			}, []string{"stage"}),
			anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lease_dex_anomalies_total",
				Help: "Count of swaps that stopped on a slippage anomaly, by task stage.",
			}, []string{"stage"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lease_liquidations_total",
				Help: "Count of liquidations started by kind and cause.",
			}, []string{"kind", "cause"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lease_handler_errors_total",
				Help: "Count of rejected lease messages by error class.",
			}, []string{"class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "lease_handler_duration_seconds",
				Help:    "Latency of one lease message from load to dispatch.",
				Buckets: prometheus.DefBuckets,
			}, []string{"message"}),
			dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lease_outbound_messages_total",
				Help: "Count of outbound lease messages by type and outcome.",
			}, []string{"type", "outcome"}),
		}
		prometheus.MustRegister(
			leaseRegistry.transitions,
			leaseRegistry.dexTimeouts,
			leaseRegistry.anomalies,
			leaseRegistry.liquidations,
			leaseRegistry.errors,
			leaseRegistry.latency,
			leaseRegistry.dispatched,
		)
	})
	return leaseRegistry
}

func (m *LeaseMetrics) RecordTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *LeaseMetrics) RecordDexTimeout(stage string) {
	if m == nil {
		return
	}
	m.dexTimeouts.WithLabelValues(stage).Inc()
}

func (m *LeaseMetrics) RecordAnomaly(stage string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(stage).Inc()
}

func (m *LeaseMetrics) RecordLiquidation(kind, cause string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(kind, cause).Inc()
}

// RecordError counts a rejected message. class is one of validation,
// unauthorized, unsupported, protocol, paused or internal.
func (m *LeaseMetrics) RecordError(class string) {
	if m == nil {
		return
	}
	if class == "" {
		class = "internal"
	}
	m.errors.WithLabelValues(class).Inc()
}

func (m *LeaseMetrics) ObserveLatency(message string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(message).Observe(d.Seconds())
}

func (m *LeaseMetrics) RecordDispatch(msgType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.dispatched.WithLabelValues(msgType, outcome).Inc()
}
