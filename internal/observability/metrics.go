package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	participationEvents  *prometheus.CounterVec
	trustAdjustments     *prometheus.CounterVec
	notificationsCreated *prometheus.CounterVec
	sideEffectFailures   *prometheus.CounterVec
	chatMessagesSent     *prometheus.CounterVec
	chatConnections      prometheus.Gauge
	sseClientsActive     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groupbuy_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		participationEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_listing_events_total",
			Help: "Listing lifecycle events emitted by the orchestrator.",
		}, []string{"event"})

		trustAdjustments = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_trust_adjustments_total",
			Help: "Trust score adjustments applied, by reason.",
		}, []string{"reason"})

		notificationsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_notifications_created_total",
			Help: "Notifications written to the outbox, by type.",
		}, []string{"type"})

		sideEffectFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_side_effect_failures_total",
			Help: "Best-effort event handler failures, by handler and event.",
		}, []string{"handler", "event"})

		chatMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groupbuy_chat_messages_total",
			Help: "Chat messages broadcast, by message type.",
		}, []string{"type"})

		chatConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "groupbuy_chat_connections_active",
			Help: "Chat websocket connections currently open.",
		})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "groupbuy_notification_streams_active",
			Help: "Notification SSE streams currently open.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			participationEvents,
			trustAdjustments,
			notificationsCreated,
			sideEffectFailures,
			chatMessagesSent,
			chatConnections,
			sseClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ListingEvents counts domain events emitted by the lifecycle orchestrator.
func ListingEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return participationEvents
}

// TrustAdjustments counts trust score changes.
func TrustAdjustments() *prometheus.CounterVec {
	RegisterMetrics()
	return trustAdjustments
}

// NotificationsCreated counts stored notifications.
func NotificationsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsCreated
}

// SideEffectFailures counts swallowed event handler errors.
func SideEffectFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return sideEffectFailures
}

// ChatMessagesSent counts broadcast chat messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSent
}

// ChatConnections tracks open chat sockets.
func ChatConnections() prometheus.Gauge {
	RegisterMetrics()
	return chatConnections
}

// SSEClientsActive tracks open notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
