// Package metrics provides Prometheus instrumentation for the real-time
// delivery core. It exposes gauges for connection and registration counts,
// counters for frame routing and delivery outcomes, and a histogram for
// presence broadcast fan-out.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of open WebSocket connections
	// at the transport layer.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pawpals_ws_connections_total",
		Help: "Current number of open WebSocket connections",
	})

	// RegisteredConnections tracks users with a registered connection.
	RegisteredConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pawpals_registered_connections",
		Help: "Current number of users with a registered connection",
	})

	// FramesTotal counts inbound frames by routed branch: "chat", "presence",
	// or "malformed".
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pawpals_frames_total",
		Help: "Total number of inbound frames by routing outcome",
	}, []string{"branch"})

	// DeliveriesTotal counts chat delivery attempts by outcome: "live" when
	// the recipient's connection took the frame, "offline" otherwise.
	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pawpals_deliveries_total",
		Help: "Total number of live delivery attempts by outcome",
	}, []string{"outcome"})

	// NotificationsTotal counts push notification decisions: "sent",
	// "suppressed", or "failed".
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pawpals_notifications_total",
		Help: "Total number of push notification decisions",
	}, []string{"outcome"})

	// BroadcastFanout records how many connected friends each presence
	// broadcast reached.
	BroadcastFanout = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pawpals_broadcast_fanout",
		Help:    "Connected friends reached per presence broadcast",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		RegisteredConnections,
		FramesTotal,
		DeliveriesTotal,
		NotificationsTotal,
		BroadcastFanout,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
