// Package metrics exposes Prometheus counters for the approval lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ApprovalsCreated counts approval records created, by tenant.
	ApprovalsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_approvals_created_total",
			Help: "Total number of approval records created",
		},
		[]string{"tenant"},
	)

	// Decisions counts approve/reject outcomes, by tenant and outcome.
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_approvals_decisions_total",
			Help: "Total number of approval decisions recorded",
		},
		[]string{"tenant", "outcome"},
	)

	// Escalations counts overdue approvals escalated by the sweep.
	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_approvals_escalations_total",
			Help: "Total number of approvals escalated as overdue",
		},
		[]string{"tenant"},
	)

	// NotificationFailures counts dropped notification intents.
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_approvals_notification_failures_total",
			Help: "Total number of notification intents that failed to publish",
		},
		[]string{"kind"},
	)
)
