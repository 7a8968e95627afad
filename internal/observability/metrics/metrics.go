package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the dialog engine.
type CallMetrics struct {
	eventsTotal    *prometheus.CounterVec
	callsEnded     *prometheus.CounterVec
	invalidInputs  *prometheus.CounterVec
	commitsTotal   *prometheus.CounterVec
	activeSessions prometheus.Gauge
	webhookLatency *prometheus.HistogramVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "report_ivr",
			Subsystem: "calls",
			Name:      "events_total",
			Help:      "Total carrier events handled",
		}, []string{"type", "outcome"}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "report_ivr",
			Subsystem: "calls",
			Name:      "ended_total",
			Help:      "Calls ended, by final status",
		}, []string{"status"}),
		invalidInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "report_ivr",
			Subsystem: "calls",
			Name:      "invalid_input_total",
			Help:      "Rejected keypad inputs",
		}, []string{"reason"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "report_ivr",
			Subsystem: "reports",
			Name:      "commits_total",
			Help:      "Commit attempts by result",
		}, []string{"status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "report_ivr",
			Subsystem: "calls",
			Name:      "active_sessions",
			Help:      "Live call sessions",
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "report_ivr",
			Subsystem: "carrier",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of carrier webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.callsEnded, m.invalidInputs, m.commitsTotal, m.activeSessions, m.webhookLatency)
	return m
}

func (m *CallMetrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *CallMetrics) ObserveCallEnded(status string) {
	if m == nil {
		return
	}
	m.callsEnded.WithLabelValues(status).Inc()
}

func (m *CallMetrics) ObserveInvalidInput(reason string) {
	if m == nil {
		return
	}
	m.invalidInputs.WithLabelValues(reason).Inc()
}

func (m *CallMetrics) ObserveCommit(status string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(status).Inc()
}

func (m *CallMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *CallMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
