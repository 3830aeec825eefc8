package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics lives on its own registry so that several servers can coexist in
// one process.
type Metrics struct {
	registry *prometheus.Registry

	Commands          *prometheus.CounterVec
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "newsd",
			Name:      "commands_total",
			Help:      "Commands answered, by command and answer status.",
		}, []string{"command", "status"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "newsd",
			Name:      "connections_active",
			Help:      "Currently registered client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "newsd",
			Name:      "connections_total",
			Help:      "Client connections accepted since start.",
		}),
	}
	m.registry.MustRegister(m.Commands, m.ConnectionsActive, m.ConnectionsTotal)
	return m
}

func (m *Metrics) ObserveCommand(command, status string) {
	m.Commands.WithLabelValues(command, status).Inc()
}

func (m *Metrics) ConnectionOpened() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.ConnectionsActive.Dec()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
