package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync engine metrics
var (
	// SyncPasses tracks reconciliation passes by outcome
	SyncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordsync_sync_passes_total",
			Help: "Reconciliation passes by outcome (ok, unlinked, error, not_running)",
		},
		[]string{"outcome"},
	)

	// SyncMutations tracks grant/revoke calls issued by the sync engine
	SyncMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordsync_sync_mutations_total",
			Help: "Permission group mutations issued by sync, by action and side",
		},
		[]string{"action", "side"},
	)

	// SyncDuration tracks reconciliation pass latency
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:                            "discordsync_sync_duration_ms",
			Help:                            "Reconciliation pass duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		},
	)
)

// Link registry metrics
var (
	// LinkRequests tracks link requests created from Discord
	LinkRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discordsync_link_requests_total",
			Help: "Link requests created",
		},
	)

	// LinkRedemptions tracks redemption attempts by outcome
	LinkRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordsync_link_redemptions_total",
			Help: "Link code redemption attempts by outcome (ok, not_found, conflict, error)",
		},
		[]string{"outcome"},
	)

	// LinkPending tracks requests currently held in the registry
	LinkPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discordsync_link_pending",
			Help: "Link requests currently held in the registry, including not yet culled",
		},
	)
)

// Bot lifecycle metrics
var (
	// BotTransitions tracks lifecycle state transitions
	BotTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordsync_bot_transitions_total",
			Help: "Bot lifecycle transitions by resulting state",
		},
		[]string{"state"},
	)

	// BotRunning reports whether the Discord connection is up
	BotRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discordsync_bot_running",
			Help: "1 while the Discord bot is in the running state",
		},
	)
)

// Bridge API metrics
var (
	// BridgeRequests tracks bridge API calls
	BridgeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discordsync_bridge_requests_total",
			Help: "Bridge API requests by route and status code",
		},
		[]string{"route", "status"},
	)
)
