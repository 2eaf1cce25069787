package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for the poller.
type Metrics struct {
	ticks         prometheus.Counter
	fetchFailures prometheus.Counter
	notices       *prometheus.CounterVec
	items         prometheus.Gauge
}

// NewMetrics registers the poller collectors with reg. A nil reg yields
// unregistered collectors, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedwidget",
			Subsystem: "reminder",
			Name:      "ticks_total",
			Help:      "Number of reminder poll ticks.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schedwidget",
			Subsystem: "reminder",
			Name:      "fetch_failures_total",
			Help:      "Ticks whose schedule fetch failed.",
		}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schedwidget",
			Subsystem: "reminder",
			Name:      "notices_total",
			Help:      "Window hits by window label and outcome.",
		}, []string{"window", "outcome"}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "schedwidget",
			Subsystem: "reminder",
			Name:      "items",
			Help:      "Items returned by the last successful fetch.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.fetchFailures, m.notices, m.items)
	}
	return m
}
