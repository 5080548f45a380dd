// Package metrics defines and registers all custom Prometheus metrics for the
// marketplace session core. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

// ── Session metrics ───────────────────────────────────────────────────────────

// SignInTotal counts sign-in attempts by outcome.
// Label:
//   - outcome: "session", "confirmation_pending", or "error"
var SignInTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_in_total",
		Help:      "Total number of sign-in attempts, by outcome.",
	},
	[]string{"outcome"},
)

// SignUpTotal counts sign-up attempts by outcome.
// Label:
//   - outcome: "created", "no_identity", or "error"
var SignUpTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_up_total",
		Help:      "Total number of sign-up attempts, by outcome.",
	},
	[]string{"outcome"},
)

// SessionPollAttemptsTotal counts session queries issued by the sign-in poll.
var SessionPollAttemptsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_poll_attempts_total",
		Help:      "Total number of session queries made while waiting for a deferred session.",
	},
)

// ResolutionFailuresTotal counts swallowed role and self-profile lookups.
// Label:
//   - kind: "role" or "profile"
var ResolutionFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolution_failures_total",
		Help:      "Total number of role or self-profile lookups that failed or found nothing.",
	},
	[]string{"kind"},
)

// RoleTransitionsTotal counts changes of the resolved role.
// Label:
//   - role: the new role, or "none" when cleared
var RoleTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_transitions_total",
		Help:      "Total number of role changes applied to the session.",
	},
	[]string{"role"},
)

// AuthChangesDroppedTotal counts auth changes lost to a full subscriber backlog.
var AuthChangesDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_changes_dropped_total",
		Help:      "Total number of auth-change notifications dropped because a subscriber fell behind.",
	},
)

// ── Profile metrics ───────────────────────────────────────────────────────────

// RequesterLookupsTotal counts requester-profile lookups.
// Label:
//   - result: "found", "not_found", "skipped", or "error"
var RequesterLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requester_lookups_total",
		Help:      "Total number of requester-profile lookups, by result.",
	},
	[]string{"result"},
)

// RequesterLookupDuration measures the server-evaluated profile call.
var RequesterLookupDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "requester_lookup_duration_seconds",
		Help:      "Duration of the get_profile_for_requester remote call.",
		Buckets:   prometheus.DefBuckets,
	},
)
