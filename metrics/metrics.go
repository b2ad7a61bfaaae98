package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relay_connections_active",
		Help: "The current number of active connections, by transport.",
	}, []string{"transport"})
	TotalConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_connections_total",
		Help: "The total number of connections accepted, by transport.",
	}, []string{"transport"})

	// Session metrics
	SessionsPaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_paired_total",
		Help: "The total number of successful supervisor pairings.",
	})
	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_expired_total",
		Help: "The total number of sessions removed by the idle sweep.",
	})

	// Routing metrics
	MessagesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_routed_total",
		Help: "The total number of messages delivered to a paired counterpart.",
	})
	MessagesUnrouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_unrouted_total",
		Help: "The total number of messages that could not be routed.",
	}, []string{"reason"})
	QueueBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_queue_broadcasts_total",
		Help: "The total number of supervisor queue updates broadcast.",
	})

	// Archive metrics
	MessagesArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_archived_total",
		Help: "The total number of messages written to the history archive.",
	}, []string{"broker_type"})

	// Auth metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_auth_success_total",
		Help: "The total number of successful supervisor authentications.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_auth_failures_total",
		Help: "The total number of failed supervisor authentications.",
	}, []string{"reason"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
