// Package metrics defines the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubConnectedClients tracks the current number of open WebSocket connections.
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Current number of open WebSocket connections",
		},
	)

	// HubSubscriptions tracks the total number of active region subscriptions.
	HubSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscriptions",
			Help: "Total active region subscriptions across all connections",
		},
	)

	// HubMessagesSent counts outbound messages by type.
	HubMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_messages_sent_total",
			Help: "Outbound WebSocket messages by message type",
		},
		[]string{"type"},
	)

	// HubSlowClientsEvicted counts clients dropped because their send buffer filled.
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "WebSocket clients evicted due to full send buffer",
		},
	)

	// HubMalformedCommands counts inbound commands rejected at the parse boundary.
	HubMalformedCommands = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_malformed_commands_total",
			Help: "Inbound client commands rejected as malformed or unknown",
		},
	)

	// HubPanicsTotal tracks hub panic recoveries.
	HubPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_panics_total",
			Help: "Total hub panic recoveries",
		},
	)
)

// Scheduler metrics
var (
	// SchedulerRunsTotal counts completed job runs by job name and result.
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Completed scheduler job runs by job and result (success/failure)",
		},
		[]string{"job", "result"},
	)

	// SchedulerSkippedFires counts timer fires skipped because the previous run was still in progress.
	SchedulerSkippedFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_skipped_fires_total",
			Help: "Timer fires skipped because the same job was still running",
		},
		[]string{"job"},
	)

	// SchedulerRunDuration observes job run duration.
	SchedulerRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Scheduler job run duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"job"},
	)
)

// Resolver metrics
var (
	// ResolverRecordsTotal counts resolved records by which fallback step produced them.
	ResolverRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_records_total",
			Help: "Resolved records by source (live/cache/synthetic)",
		},
		[]string{"resolver", "source"},
	)

	// ResolverCooldownActivations counts transitions into the upstream cooldown window.
	ResolverCooldownActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_cooldown_activations_total",
			Help: "Times the upstream failure cooldown window was opened",
		},
	)

	// UpstreamRequestDuration observes upstream fetch latency by outcome.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream provider request duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
)

// WebSocket endpoint metrics
var (
	// WebSocketConnectionsTotal counts connection attempts by result.
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "WebSocket connection attempts by result (success/rejected/error)",
		},
		[]string{"result"},
	)

	// WebSocketConnectionsRejected counts rejections by limiter reason.
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "WebSocket connections rejected by reason (rate_limit/per_ip_limit/global_limit)",
		},
		[]string{"reason"},
	)

	// WebSocketConnectionDuration observes how long connections stay open.
	WebSocketConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_connection_duration_seconds",
			Help:    "WebSocket connection duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)
)
