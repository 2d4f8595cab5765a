package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngagementMetrics exposes counters/histograms for the honeypot engine.
type EngagementMetrics struct {
	turnsTotal        *prometheus.CounterVec
	turnLatency       *prometheus.HistogramVec
	providerAttempts  *prometheus.CounterVec
	finalizationsTotal *prometheus.CounterVec
	sweepsTotal       *prometheus.CounterVec
	reportsTotal      *prometheus.CounterVec
}

func NewEngagementMetrics(reg prometheus.Registerer) *EngagementMetrics {
	m := &EngagementMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Total processed engagement turns",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "honeypot",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one engagement turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		providerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "llm",
			Name:      "provider_attempts_total",
			Help:      "Per-backend attempts across failover pools",
		}, []string{"capability", "outcome"}),
		finalizationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "engine",
			Name:      "finalizations_total",
			Help:      "Finalize and re-finalize events",
		}, []string{"kind"}),
		sweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "sweeper",
			Name:      "sessions_swept_total",
			Help:      "Idle-sweeper claim outcomes",
		}, []string{"result"}),
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "report",
			Name:      "submissions_total",
			Help:      "Report submissions by delivery status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal,
		m.turnLatency,
		m.providerAttempts,
		m.finalizationsTotal,
		m.sweepsTotal,
		m.reportsTotal,
	)
	return m
}

func (m *EngagementMetrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *EngagementMetrics) ObserveProviderAttempt(capability, outcome string) {
	if m == nil {
		return
	}
	m.providerAttempts.WithLabelValues(capability, outcome).Inc()
}

func (m *EngagementMetrics) ObserveFinalization(kind string) {
	if m == nil {
		return
	}
	m.finalizationsTotal.WithLabelValues(kind).Inc()
}

func (m *EngagementMetrics) ObserveSweep(result string) {
	if m == nil {
		return
	}
	m.sweepsTotal.WithLabelValues(result).Inc()
}

func (m *EngagementMetrics) ObserveReport(status string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(status).Inc()
}
