package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-doc-approvals/internal/workflow"
)

// ApprovalStore is the durable repository the engine depends on. All
// implementations must honor per-record conditional updates so concurrent
// decisions cannot both succeed.
type ApprovalStore interface {
	// CreateMany persists all approvals atomically: either every record is
	// created or none are.
	CreateMany(ctx context.Context, approvals []*workflow.Approval) error
	// Get returns an approval by ID or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*workflow.Approval, error)
	// CompareAndSetStatus transitions the record to next only when its
	// current status is in expected. Returns false when the record was
	// concurrently decided (or does not exist).
	CompareAndSetStatus(ctx context.Context, id string, expected []workflow.Status, next workflow.Status, decidedAt *time.Time, comment *string) (bool, error)
	// ExpireSiblings transitions every still-actionable approval of the
	// entity except excludeID to expired, atomically, returning the
	// affected IDs.
	ExpireSiblings(ctx context.Context, entityID, entityType, excludeID string) ([]string, error)
	// ListByEntity returns all approvals of an entity in creation order.
	ListByEntity(ctx context.Context, entityID, entityType string) ([]*workflow.Approval, error)
	// ListPendingOlderThan returns pending approvals older than age.
	ListPendingOlderThan(ctx context.Context, age time.Duration) ([]*workflow.Approval, error)
	// ListPendingForApprover returns pending approvals awaiting a user.
	ListPendingForApprover(ctx context.Context, tenantID, approverID string) ([]*workflow.Approval, error)
	// AggregateStatistics returns status counts and decision timing.
	AggregateStatistics(ctx context.Context, scope workflow.StatisticsScope) (*workflow.AggregateStats, error)
}

// RuleStore persists the tenant's configurable rule set.
type RuleStore interface {
	Save(ctx context.Context, tenantID string, rule workflow.Rule) error
	Delete(ctx context.Context, tenantID, ruleID string) error
}

// AuditLog receives immutable lifecycle records. Append failures are logged
// by the engine, never propagated.
type AuditLog interface {
	Append(ctx context.Context, entry *workflow.AuditEntry) error
}

// EventKind classifies a notification intent.
type EventKind string

const (
	EventRequestCreated EventKind = "request_created"
	EventApproved       EventKind = "approved"
	EventRejected       EventKind = "rejected"
	EventEscalated      EventKind = "escalated"
)

// NotificationEvent is an approval-lifecycle intent. Delivery mechanics
// (email, in-app) belong to the sink, not the engine.
type NotificationEvent struct {
	Kind        EventKind      `json:"kind"`
	ApprovalID  string         `json:"approval_id"`
	RecipientID string         `json:"recipient_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NotificationSink dispatches notification intents. Fire-and-forget from
// the engine's perspective.
type NotificationSink interface {
	Notify(ctx context.Context, event NotificationEvent) error
}
