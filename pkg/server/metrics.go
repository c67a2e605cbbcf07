package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the server's admission and backpressure state as
// prometheus gauges/counters, registered once per Server instance so
// multiple servers in one process (tests, embedding) don't collide.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	InFlightRequests  prometheus.Gauge
	TotalRequests     prometheus.Counter
	RequestErrors     prometheus.Counter
	ConnectionErrors  prometheus.Counter
}

// NewMetrics builds and registers a Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aras",
			Name:      "active_connections",
			Help:      "Number of currently open TCP connections.",
		}),
		InFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aras",
			Name:      "inflight_requests",
			Help:      "Number of Handler invocations currently admitted (queued or running).",
		}),
		TotalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aras",
			Name:      "requests_total",
			Help:      "Total number of requests parsed off the wire.",
		}),
		RequestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aras",
			Name:      "request_errors_total",
			Help:      "Total number of requests that ended in a Handler or I/O error.",
		}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aras",
			Name:      "connection_errors_total",
			Help:      "Total number of Accept() failures.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ActiveConnections, m.InFlightRequests, m.TotalRequests, m.RequestErrors, m.ConnectionErrors)
	}
	return m
}

// sample refreshes the gauges from the Server's live counters. No code in
// the module calls it, so InFlightRequests is never updated;
// ActiveConnections is updated directly by trackConnection and
// untrackConnection.
func (s *Server) sample(m *Metrics) {
	m.ActiveConnections.Set(float64(s.stats.ActiveConnections.Load()))
	m.InFlightRequests.Set(float64(s.exec.InFlight()))
}
