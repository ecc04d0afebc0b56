// Package metrics provides Prometheus metrics for the liveroom service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connections tracks currently open websocket connections.
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liveroom_connections",
			Help: "Number of currently open client connections",
		},
	)

	// AuthFailures counts rejected handshakes.
	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveroom_auth_failures_total",
			Help: "Total number of connections rejected during authentication",
		},
	)

	// PresenceChanges counts joins and leaves.
	PresenceChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroom_presence_changes_total",
			Help: "Total number of presence joins and leaves",
		},
		[]string{"op"},
	)

	// ChatMessages counts persisted chat messages by kind.
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroom_chat_messages_total",
			Help: "Total number of chat messages relayed",
		},
		[]string{"kind"},
	)

	// SignalsForwarded counts negotiation messages by outcome.
	SignalsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroom_signals_total",
			Help: "Total number of signaling messages by outcome",
		},
		[]string{"result"},
	)

	// SessionStateTransitions tracks session state changes.
	SessionStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroom_session_state_transitions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// RecordingCommands counts recording operations by result.
	RecordingCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroom_recording_commands_total",
			Help: "Total number of recording commands issued to the media service",
		},
		[]string{"op", "result"},
	)

	// MediaCallDuration tracks latency of media service calls.
	MediaCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liveroom_media_call_duration_seconds",
			Help:    "Duration of media service calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// SlowConsumers counts connections closed because their send queue filled up.
	SlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveroom_slow_consumers_total",
			Help: "Total number of connections closed for backpressure",
		},
	)
)

// RecordStateTransition records a session state change.
func RecordStateTransition(fromState, toState string) {
	SessionStateTransitions.WithLabelValues(fromState, toState).Inc()
}

// RecordRecordingCommand records the outcome of a recording operation.
func RecordRecordingCommand(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RecordingCommands.WithLabelValues(op, result).Inc()
}
