package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	EnrollmentsTotal *prometheus.CounterVec
	MessagesTotal    prometheus.Counter
	RelayConnections prometheus.Gauge
	RelayEventsTotal *prometheus.CounterVec
	registry         *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		EnrollmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nebula",
			Name:      "enrollments_total",
			Help:      "Enrollment attempts by outcome.",
		}, []string{"outcome"}),
		MessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nebula",
			Name:      "messages_total",
			Help:      "Messages persisted.",
		}),
		RelayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nebula",
			Name:      "relay_connections",
			Help:      "Open relay websocket connections.",
		}),
		RelayEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nebula",
			Name:      "relay_events_total",
			Help:      "Client events handled by the relay.",
		}, []string{"event"}),
		registry: reg,
	}

	reg.MustRegister(m.EnrollmentsTotal, m.MessagesTotal, m.RelayConnections, m.RelayEventsTotal)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
