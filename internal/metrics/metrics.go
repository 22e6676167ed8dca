// Package metrics provides Prometheus instrumentation for the chat service:
// gauges for connections, queue depth and open rooms, counters for relayed
// messages, and a histogram for time spent waiting in the queue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections tracks the current number of active WebSocket connections.
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drift_connections",
		Help: "Current number of active WebSocket connections",
	})

	// QueueSize tracks the current number of waiting searchers.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drift_queue_size",
		Help: "Current number of connections in the waiting registry",
	})

	// OpenRooms tracks the current number of active pair rooms.
	OpenRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drift_open_rooms",
		Help: "Current number of open chat rooms",
	})

	// MessagesRelayed counts messages forwarded between partners.
	MessagesRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drift_messages_relayed_total",
		Help: "Total number of chat messages relayed",
	})

	// MatchWait records how long the matched party waited in the queue.
	MatchWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "drift_match_wait_seconds",
		Help:    "Time a matched searcher spent in the waiting registry",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// ReportsFiled counts abuse reports forwarded to the moderation sink.
	ReportsFiled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drift_reports_filed_total",
		Help: "Total number of abuse reports filed",
	})
)

func init() {
	prometheus.MustRegister(
		Connections,
		QueueSize,
		OpenRooms,
		MessagesRelayed,
		MatchWait,
		ReportsFiled,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
