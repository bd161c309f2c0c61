// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Membership check results beyond true/false. They all count as "unknown"
// for reconciliation but are kept apart here so a missing file can be told
// from an unreadable one.
const (
	ResultTrue       = "true"
	ResultFalse      = "false"
	ResultNoPath     = "no_path"
	ResultMissing    = "missing"
	ResultUnreadable = "unreadable"
)

var (
	// MembershipChecks counts usernames file lookups by result.
	MembershipChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolesync_membership_checks_total",
			Help: "Usernames file lookups by result",
		},
		[]string{"result"},
	)

	// Reconciliations counts user reconciliations by outcome (unchanged, applied, failed).
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolesync_reconciliations_total",
			Help: "User role reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	// RoleChanges counts individual role grants and revocations.
	RoleChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolesync_role_changes_total",
			Help: "Roles granted or revoked by reconciliation",
		},
		[]string{"op"},
	)

	// Events counts consumed IAM events by kind and status.
	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolesync_events_total",
			Help: "Consumed IAM events by kind and processing status",
		},
		[]string{"kind", "status"},
	)

	// HTTPRequests counts admin API requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rolesync_http_requests_total",
			Help: "Admin API requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes admin API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rolesync_http_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
