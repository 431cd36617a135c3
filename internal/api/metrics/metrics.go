// Package metrics defines and registers all custom Prometheus metrics for the
// clinic portal gateway. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Refresh metrics ───────────────────────────────────────────────────────────

// RefreshTotal counts refresh outcomes.
// Label:
//   - result: "success", "cached", "expired", "no_token", "error"
var RefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_total",
		Help:      "Total number of token refresh attempts, by result.",
	},
	[]string{"result"},
)

// RefreshSharedTotal counts callers that joined an in-flight refresh instead
// of starting their own.
var RefreshSharedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_shared_total",
		Help:      "Total number of refresh callers served by an in-flight refresh.",
	},
)

// RefreshInFlight is the number of backend refresh calls currently running.
var RefreshInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_in_flight",
		Help:      "Backend refresh calls currently in flight.",
	},
)

// ── Upstream metrics ──────────────────────────────────────────────────────────

// FetchRetriesTotal counts requests retried after a 401.
// Label:
//   - outcome: "success" (retry accepted), "expired" (session torn down)
var FetchRetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_retries_total",
		Help:      "Total number of authenticated requests retried after a refresh.",
	},
	[]string{"outcome"},
)

// UpstreamRequestDuration measures single backend round trips.
// Label:
//   - status: HTTP status class ("2xx", "4xx", ...) or "error"
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of requests from the gateway to the backend.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"status"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionChecksTotal counts checkAuth resolutions.
// Label:
//   - result: "authenticated", "anonymous", "stale" (discarded after logout),
//     "revoked" (logged out by another request sharing the session)
var SessionChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_checks_total",
		Help:      "Total number of session verifications, by result.",
	},
	[]string{"result"},
)

// GuardDecisionsTotal counts route guard outcomes.
// Label:
//   - decision: "authorized", "login", "fallback", "checking"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions.",
	},
	[]string{"decision"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events by type and outcome.
// Labels:
//   - type: the auth event type (e.g. "login")
//   - outcome: "recorded", "dropped", "failed"
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of auth audit events, by type and outcome.",
	},
	[]string{"type", "outcome"},
)

// AuditQueueDepth tracks the number of events waiting in each worker channel.
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
