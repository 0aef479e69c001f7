package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each server instance
// carries its own registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	ClientsActive     prometheus.Gauge
	Channels          prometheus.Gauge
	LinesReceived     prometheus.Counter
	MessagesDelivered prometheus.Counter
	WriteErrors       prometheus.Counter
	Commands          *prometheus.CounterVec
}

// NewMetrics creates the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ClientsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tinbox_clients_active",
			Help: "Number of connected clients.",
		}),
		Channels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tinbox_channels",
			Help: "Number of channels, including default.",
		}),
		LinesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "tinbox_lines_received_total",
			Help: "Complete lines read from clients.",
		}),
		MessagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "tinbox_messages_delivered_total",
			Help: "Lines successfully written to clients.",
		}),
		WriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tinbox_write_errors_total",
			Help: "Failed client writes. Each one drops the client.",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tinbox_commands_total",
			Help: "Slash commands dispatched, by command.",
		}, []string{"command"}),
	}
}

// Handler serves the collectors over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
