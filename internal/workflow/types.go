package workflow

import "time"

// ── Domain types for the approval workflow engine ────────────────────────────

// Status is the lifecycle state of an approval record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusEscalated Status = "escalated"
)

// Actionable reports whether an approval in this status can still be decided.
// Escalated approvals remain actionable, they are only flagged as overdue.
func (s Status) Actionable() bool {
	return s == StatusPending || s == StatusEscalated
}

// Decided reports whether an approver has acted on the record.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// ActionableStatuses is the expected-status set for decision updates.
var ActionableStatuses = []Status{StatusPending, StatusEscalated}

// Context is the key-value description of the document under approval
// (contract_value, contract_type, ...) consumed by rule evaluation.
type Context map[string]any

// Action is an opaque token produced by a triggered rule, mapped to a
// concrete step insertion during synthesis.
type Action string

// Warning is a non-fatal problem collected during rule evaluation or step
// synthesis. Warnings never abort processing of other rules or actions.
type Warning struct {
	Rule    string `json:"rule,omitempty"`
	Action  Action `json:"action,omitempty"`
	Message string `json:"message"`
}

// Approval is one row per synthesized step per document. Records are never
// deleted, only transitioned.
type Approval struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	EntityType  string     `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	StepName    Step       `json:"step_name"`
	RequesterID string     `json:"requester_id"`
	ApproverID  string     `json:"approver_id"`
	Status      Status     `json:"status"`
	Comment     *string    `json:"comment,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// StatusSummary aggregates all approval records for one entity.
type StatusSummary struct {
	EntityID       string     `json:"entity_id"`
	EntityType     string     `json:"entity_type"`
	Total          int        `json:"total"`
	Approved       int        `json:"approved"`
	Pending        int        `json:"pending"`
	Rejected       int        `json:"rejected"`
	Expired        int        `json:"expired"`
	Escalated      int        `json:"escalated"`
	AllApproved    bool       `json:"all_approved"`
	CompletionRate float64    `json:"completion_rate"`
	Approvals      []Approval `json:"approvals"`
}

// StatisticsScope narrows statistics to one tenant; the zero value is global.
type StatisticsScope struct {
	TenantID string
}

// AggregateStats is the raw aggregation an ApprovalStore returns.
type AggregateStats struct {
	Counts          map[Status]int
	AvgApprovalTime time.Duration // over approved records only
}

// Statistics is the caller-facing metrics summary.
type Statistics struct {
	Total                int     `json:"total"`
	Pending              int     `json:"pending"`
	Approved             int     `json:"approved"`
	Rejected             int     `json:"rejected"`
	Expired              int     `json:"expired"`
	Escalated            int     `json:"escalated"`
	ApprovalRate         float64 `json:"approval_rate"`  // percent of decided
	RejectionRate        float64 `json:"rejection_rate"` // percent of decided
	AvgApprovalTimeHours float64 `json:"avg_approval_time_hours"`
}

// AuditEntry is one immutable record in the approval audit log.
type AuditEntry struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	ApprovalID  *string        `json:"approval_id,omitempty"`
	Action      string         `json:"action"` // created | approved | rejected | escalated
	PerformedBy string         `json:"performed_by"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
