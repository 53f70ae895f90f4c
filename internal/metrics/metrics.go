// Package metrics registers the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Lifecycle metrics
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consultation_transitions_total",
			Help: "Committed consultation lifecycle transitions",
		},
		[]string{"operation", "from", "to"},
	)

	operationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consultation_operation_failures_total",
			Help: "Rejected or failed lifecycle operations by error kind",
		},
		[]string{"operation", "kind"},
	)

	sideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consultation_side_effect_failures_total",
			Help: "Post-commit side effects that failed and were swallowed",
		},
		[]string{"effect"}, // notification, quota, event
	)

	// Realtime metrics
	realtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Open realtime connections",
		},
	)

	realtimeDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Realtime events handed to connections",
		},
		[]string{"result"}, // delivered, dropped
	)

	// Delivery metrics
	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_emails_total",
			Help: "Notification e-mails processed by the worker",
		},
		[]string{"status"}, // sent, skipped, failed
	)
)

// GinMiddleware records request count and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTransition records a committed lifecycle transition.
func RecordTransition(operation, from, to string) {
	transitionsTotal.WithLabelValues(operation, from, to).Inc()
}

// RecordOperationFailure records an operation that returned an error.
func RecordOperationFailure(operation, kind string) {
	operationFailuresTotal.WithLabelValues(operation, kind).Inc()
}

// RecordSideEffectFailure records a swallowed post-commit failure.
func RecordSideEffectFailure(effect string) {
	sideEffectFailuresTotal.WithLabelValues(effect).Inc()
}

// RealtimeConnectionOpened increments the open connection gauge.
func RealtimeConnectionOpened() { realtimeConnections.Inc() }

// RealtimeConnectionClosed decrements the open connection gauge.
func RealtimeConnectionClosed() { realtimeConnections.Dec() }

// RecordRealtimeDelivery records one event handed to (or dropped for) a connection.
func RecordRealtimeDelivery(delivered bool) {
	result := "dropped"
	if delivered {
		result = "delivered"
	}
	realtimeDeliveriesTotal.WithLabelValues(result).Inc()
}

// RecordEmail records the outcome of a notification e-mail task.
func RecordEmail(status string) {
	emailsTotal.WithLabelValues(status).Inc()
}
