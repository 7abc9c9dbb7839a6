// Package observability provides Prometheus metrics for the application.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbridge_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodbridge_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbridge_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbridge_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MessageThroughput counts chat messages persisted per type.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbridge_chat_messages_total",
		Help: "Total number of chat messages persisted",
	}, []string{"message_type"})

	// RequestTransitions counts request lifecycle transitions by outcome.
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodbridge_request_transitions_total",
		Help: "Total number of food request lifecycle transitions",
	}, []string{"to_status"})

	// ListingClaimConflicts counts claim attempts that lost the race on a listing.
	ListingClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodbridge_listing_claim_conflicts_total",
		Help: "Total number of claim attempts rejected because another request won the listing",
	})
)
