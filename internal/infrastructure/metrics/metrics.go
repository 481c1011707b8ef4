package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LiveConnections is the current number of websocket clients attached to
	// this instance. Also surfaced by the health endpoint.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumen",
		Name:      "live_connections",
		Help:      "Number of currently connected websocket clients.",
	})

	// EventsConsumed counts consumed broker messages by queue and outcome
	// (acked, dropped, retried, parked).
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumen",
		Name:      "events_consumed_total",
		Help:      "Broker messages consumed, by queue and outcome.",
	}, []string{"queue", "outcome"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lumen",
		Name:      "event_handler_duration_seconds",
		Help:      "Time spent in event handlers.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// Broadcasts counts backplane operations by kind (emit, evict).
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumen",
		Name:      "backplane_operations_total",
		Help:      "Backplane operations published, by kind.",
	}, []string{"op"})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lumen",
		Name:      "broker_reconnects_total",
		Help:      "Broker reconnection attempts.",
	})
)

// Outcome labels for EventsConsumed.
const (
	OutcomeAcked   = "acked"
	OutcomeDropped = "dropped"
	OutcomeRetried = "retried"
	OutcomeParked  = "parked"
)

func Handler() http.Handler {
	return promhttp.Handler()
}
