package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Socket metrics

	// SocketConnectionsActive tracks open websocket connections
	SocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "socket",
			Name:      "connections_active",
			Help:      "Number of open websocket connections",
		},
	)

	// SocketSessions tracks authentication outcomes
	SocketSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "socket",
			Name:      "sessions_total",
			Help:      "Total session authentication attempts",
		},
		[]string{"result"}, // authenticated, invalid_session, onboarding, auth_error, ready_failed
	)

	// SocketEventsDelivered tracks events written to clients
	SocketEventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "socket",
			Name:      "events_delivered_total",
			Help:      "Total events delivered to clients",
		},
		[]string{"type"},
	)

	// SocketEventDecodeErrors tracks bus payloads that could not be decoded
	SocketEventDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "socket",
			Name:      "event_decode_errors_total",
			Help:      "Total bus payloads that failed to decode",
		},
	)

	// SocketClientMessages tracks messages received from clients
	SocketClientMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "socket",
			Name:      "client_messages_total",
			Help:      "Total messages received from clients",
		},
		[]string{"type", "result"}, // result: handled, malformed, rate_limited, ignored
	)

	// SocketSessionDuration tracks how long authenticated sessions stay open
	SocketSessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ember",
			Subsystem: "socket",
			Name:      "session_duration_seconds",
			Help:      "Duration of authenticated sessions",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 12 * 3600, 24 * 3600},
		},
	)

	// State synchronisation metrics

	// StateReadyDuration tracks ready payload build time
	StateReadyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ember",
			Subsystem: "state",
			Name:      "ready_duration_seconds",
			Help:      "Time to build the ready payload",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// StateRecalculations tracks server visibility recalculations
	StateRecalculations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "state",
			Name:      "recalculations_total",
			Help:      "Total server visibility recalculations",
		},
	)

	// StateSyntheticEvents tracks events generated by the synchroniser
	StateSyntheticEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "state",
			Name:      "synthetic_events_total",
			Help:      "Total events synthesised from visibility changes",
		},
		[]string{"type"}, // ChannelCreate, ChannelDelete, Bulk
	)

	// StateSubscriptionChanges tracks topic subscription changes
	StateSubscriptionChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "state",
			Name:      "subscription_changes_total",
			Help:      "Total topic subscription changes applied to the bus",
		},
		[]string{"op"}, // subscribe, unsubscribe, reset
	)

	// Permission metrics

	// PermissionCalculations tracks permission calculations by target
	PermissionCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "permissions",
			Name:      "calculations_total",
			Help:      "Total permission calculations",
		},
		[]string{"target"}, // user, server, channel
	)

	// Bus metrics

	// BusPublished tracks events published to the bus
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Total events published to the bus",
		},
		[]string{"backend"},
	)

	// BusPublishErrors tracks failed publishes
	BusPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "bus",
			Name:      "publish_errors_total",
			Help:      "Total failed bus publishes",
		},
		[]string{"backend"},
	)

	// BusReceived tracks events received from the bus
	BusReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "bus",
			Name:      "received_total",
			Help:      "Total events received from the bus",
		},
		[]string{"backend"},
	)

	// Presence metrics

	// PresenceOperations tracks presence store operations
	PresenceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "presence",
			Name:      "operations_total",
			Help:      "Total presence store operations",
		},
		[]string{"operation", "result"},
	)

	// PresenceCircuitBreakerState tracks the presence store circuit breaker
	// 0 = closed, 1 = open, 2 = half-open
	PresenceCircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "presence",
			Name:      "circuit_breaker_state",
			Help:      "Presence circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)

	// PresenceRegionsSwept tracks stale regions cleared by the janitor
	PresenceRegionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "presence",
			Name:      "regions_swept_total",
			Help:      "Total stale presence regions cleared",
		},
	)

	// LeaderElectionState tracks leader election status
	// 0 = follower, 1 = leader
	LeaderElectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ember",
			Subsystem: "presence",
			Name:      "leader_election_state",
			Help:      "Leader election state (0=follower, 1=leader)",
		},
	)
)

// CircuitBreakerState constants
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)
