package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry            *prometheus.Registry
	CapturedTotal       *prometheus.CounterVec
	StoredTransactions  prometheus.Gauge
	PendingRequests     prometheus.Gauge
	CaptureErrorsTotal  *prometheus.CounterVec
	EvictionsTotal      prometheus.Counter
	NotificationsFailed prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		CapturedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspector",
			Name:      "transactions_captured_total",
			Help:      "Captured transactions by outcome",
		}, []string{"source", "outcome"}),
		StoredTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inspector",
			Name:      "transactions_stored",
			Help:      "Transactions currently held in the store",
		}),
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inspector",
			Name:      "pending_requests",
			Help:      "Requests started but not yet completed",
		}),
		CaptureErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspector",
			Name:      "capture_errors_total",
			Help:      "Capture-side failures by stage",
		}, []string{"stage"}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inspector",
			Name:      "evictions_total",
			Help:      "Transactions evicted to respect capacity",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inspector",
			Name:      "notifications_failed_total",
			Help:      "Notification deliveries that failed",
		}),
	}
	r.MustRegister(m.CapturedTotal, m.StoredTransactions, m.PendingRequests, m.CaptureErrorsTotal, m.EvictionsTotal, m.NotificationsFailed)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// The helpers below tolerate a nil receiver so components can run without metrics.

func (m *Metrics) Captured(source, outcome string) {
	if m == nil {
		return
	}
	m.CapturedTotal.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) CaptureError(stage string) {
	if m == nil {
		return
	}
	m.CaptureErrorsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) Pending(delta float64) {
	if m == nil {
		return
	}
	m.PendingRequests.Add(delta)
}

func (m *Metrics) Stored(n int) {
	if m == nil {
		return
	}
	m.StoredTransactions.Set(float64(n))
}

func (m *Metrics) Evicted(n int) {
	if m == nil {
		return
	}
	m.EvictionsTotal.Add(float64(n))
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}
