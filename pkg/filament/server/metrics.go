package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine-level counters and gauges. Registered on the default registry;
// exposition is up to the embedding process.
var (
	connectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "filament",
		Subsystem: "server",
		Name:      "connections_accepted_total",
		Help:      "Client connections accepted across all listeners",
	})

	connectionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "filament",
		Subsystem: "server",
		Name:      "connections_closed_total",
		Help:      "Client connections closed for any reason",
	})

	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "filament",
		Subsystem: "server",
		Name:      "connections_active",
		Help:      "Client connections currently registered",
	})

	responsesByClass = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filament",
		Subsystem: "server",
		Name:      "responses_total",
		Help:      "Responses fully sent, by status class",
	}, []string{"class"})

	cgiSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "filament",
		Subsystem: "cgi",
		Name:      "spawned_total",
		Help:      "CGI child processes started",
	})

	cgiTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "filament",
		Subsystem: "cgi",
		Name:      "timeouts_total",
		Help:      "CGI children killed for exceeding the execution timeout",
	})
)

// statusClass buckets a status line's code for the responses counter.
func statusClass(response []byte) string {
	// "HTTP/1.1 NNN ..."
	if len(response) < 10 {
		return "unknown"
	}
	switch response[9] {
	case '1':
		return "1xx"
	case '2':
		return "2xx"
	case '3':
		return "3xx"
	case '4':
		return "4xx"
	case '5':
		return "5xx"
	}
	return "unknown"
}
