// Package metrics defines and registers all custom Prometheus metrics for the
// expense tracker API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation; the /metrics route exposes them together with the echo
// request metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "expense_tracker"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts sign-up and login attempts.
// Labels:
//   - operation: "sign_up" or "login"
//   - result: "success", "invalid", "conflict" or "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of sign-up and login attempts, by outcome.",
	},
	[]string{"operation", "result"},
)

// ── Transaction metrics ───────────────────────────────────────────────────────

// TransactionsCreatedTotal counts newly created transactions.
// Label:
//   - category: "saving", "expense" or "investment"
var TransactionsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_created_total",
		Help:      "Total number of transactions created, by category.",
	},
	[]string{"category"},
)

// StatsCacheTotal counts category statistics cache lookups.
// Label:
//   - result: "hit", "miss", "error" or "bypass"
var StatsCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stats_cache_total",
		Help:      "Total number of category statistics cache lookups, labelled by result.",
	},
	[]string{"result"},
)

// ── GraphQL metrics ───────────────────────────────────────────────────────────

// GraphQLRequestDuration measures how long a GraphQL request takes to execute.
// Label:
//   - operation: "query", "mutation", "subscription" or "unknown"
var GraphQLRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "graphql_request_duration_seconds",
		Help:      "Duration of GraphQL request execution.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// GraphQLErrorsTotal counts resolver errors returned to callers.
// Label:
//   - field: the resolver that failed (e.g. "createTransaction")
var GraphQLErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graphql_errors_total",
		Help:      "Total number of errors returned by GraphQL resolvers.",
	},
	[]string{"field"},
)

// ── Keepalive metrics ─────────────────────────────────────────────────────────

// KeepalivePingsTotal counts outbound keepalive requests.
// Label:
//   - result: "success", "bad_status" or "error"
var KeepalivePingsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "keepalive_pings_total",
		Help:      "Total number of keepalive GET requests, by outcome.",
	},
	[]string{"result"},
)
