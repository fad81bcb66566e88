package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
	"github.com/pesio-ai/be-doc-approvals/internal/logger"
	"github.com/pesio-ai/be-doc-approvals/internal/metrics"
	"github.com/pesio-ai/be-doc-approvals/internal/workflow"
)

// ApprovalWorkflowService is the workflow engine: it evaluates routing
// rules against a document context, synthesizes the step sequence, and
// manages the approval record lifecycle over an ApprovalStore.
//
// Each instance owns its rule set and is scoped to one tenant and one
// workflow template. The service itself is stateless between calls; all
// durable state lives in the store.
type ApprovalWorkflowService struct {
	tenantID string
	skeleton workflow.Skeleton
	rules    *workflow.RuleSet

	store     ApprovalStore
	ruleStore RuleStore // optional; nil keeps rules in-memory only
	audit     AuditLog  // optional
	sink      NotificationSink
	log       *logger.Logger
}

// NewApprovalWorkflowService creates the engine for a tenant. templateName
// falls back to "standard" when unknown, and templates that ship seed rules
// (value_based, type_based) have them pre-loaded into the rule set.
func NewApprovalWorkflowService(
	tenantID, templateName string,
	store ApprovalStore,
	ruleStore RuleStore,
	audit AuditLog,
	sink NotificationSink,
	log *logger.Logger,
) (*ApprovalWorkflowService, error) {
	skeleton, seeds, ok := workflow.Template(templateName)
	if !ok {
		log.Warn().Str("template", templateName).Msg("Unknown workflow template; falling back to standard")
		skeleton, seeds, _ = workflow.Template("standard")
	}

	rules, err := workflow.NewRuleSet(seeds...)
	if err != nil {
		return nil, err
	}

	return &ApprovalWorkflowService{
		tenantID:  tenantID,
		skeleton:  skeleton,
		rules:     rules,
		store:     store,
		ruleStore: ruleStore,
		audit:     audit,
		sink:      sink,
		log:       log,
	}, nil
}

// TenantID returns the tenant this engine is scoped to.
func (s *ApprovalWorkflowService) TenantID() string { return s.tenantID }

// ── Rule management ───────────────────────────────────────────────────────────

// AddRule validates, persists and activates a rule.
func (s *ApprovalWorkflowService) AddRule(ctx context.Context, rule workflow.Rule) (workflow.Rule, error) {
	added, err := s.rules.Add(rule)
	if err != nil {
		return workflow.Rule{}, err
	}

	if s.ruleStore != nil {
		if err := s.ruleStore.Save(ctx, s.tenantID, added); err != nil {
			s.rules.Remove(added.ID)
			return workflow.Rule{}, err
		}
	}

	s.log.Info().Str("rule", added.Name).Str("action", string(added.Action)).Msg("Approval rule added")
	return added, nil
}

// ActivateRule loads an already-persisted rule into the active set without
// writing it back to the store. Used at startup.
func (s *ApprovalWorkflowService) ActivateRule(rule workflow.Rule) error {
	_, err := s.rules.Add(rule)
	return err
}

// RemoveRule deactivates and deletes a rule.
func (s *ApprovalWorkflowService) RemoveRule(ctx context.Context, ruleID string) error {
	if !s.rules.Remove(ruleID) {
		return apperrors.NotFound("rule", ruleID)
	}
	if s.ruleStore != nil {
		if err := s.ruleStore.Delete(ctx, s.tenantID, ruleID); err != nil {
			return err
		}
	}
	return nil
}

// ListRules returns the active rules.
func (s *ApprovalWorkflowService) ListRules() []workflow.Rule {
	return s.rules.Rules()
}

// ── Rule evaluation and step synthesis ────────────────────────────────────────

// EvaluateRules returns the deduplicated ordered actions for a document
// context plus non-fatal warnings.
func (s *ApprovalWorkflowService) EvaluateRules(docCtx workflow.Context) ([]workflow.Action, []workflow.Warning) {
	return s.rules.Evaluate(docCtx)
}

// GetWorkflowSteps returns the synthesized step sequence for a document
// context.
func (s *ApprovalWorkflowService) GetWorkflowSteps(docCtx workflow.Context) ([]workflow.Step, []workflow.Warning) {
	actions, warnings := s.rules.Evaluate(docCtx)
	steps, synthWarnings := workflow.SynthesizeSteps(s.skeleton, actions)
	return steps, append(warnings, synthWarnings...)
}

// ── Approval lifecycle ────────────────────────────────────────────────────────

// CreateApprovals runs rule evaluation and step synthesis, then creates one
// pending approval per non-sentinel step. Creation is all-or-nothing: a
// step without an approver mapping fails the whole call before any write.
func (s *ApprovalWorkflowService) CreateApprovals(
	ctx context.Context,
	entityID, entityType, requesterID string,
	docCtx workflow.Context,
	approverMapping map[workflow.Step]string,
) ([]string, error) {
	steps, warnings := s.GetWorkflowSteps(docCtx)
	for _, w := range warnings {
		s.log.Warn().Str("rule", w.Rule).Str("action", string(w.Action)).Msg(w.Message)
	}

	var approvals []*workflow.Approval
	for _, step := range steps {
		if step.Sentinel() {
			continue
		}
		approverID, ok := approverMapping[step]
		if !ok || approverID == "" {
			return nil, apperrors.MissingApprover(string(step))
		}
		approvals = append(approvals, &workflow.Approval{
			TenantID:    s.tenantID,
			EntityType:  entityType,
			EntityID:    entityID,
			StepName:    step,
			RequesterID: requesterID,
			ApproverID:  approverID,
			Status:      workflow.StatusPending,
		})
	}

	if err := s.store.CreateMany(ctx, approvals); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(approvals))
	for _, a := range approvals {
		ids = append(ids, a.ID)
		s.notify(ctx, NotificationEvent{
			Kind:        EventRequestCreated,
			ApprovalID:  a.ID,
			RecipientID: a.ApproverID,
			Metadata: map[string]any{
				"entity_id":    entityID,
				"entity_type":  entityType,
				"step":         string(a.StepName),
				"requester_id": requesterID,
			},
		})
	}

	metrics.ApprovalsCreated.WithLabelValues(s.tenantID).Add(float64(len(ids)))
	s.appendAudit(ctx, &workflow.AuditEntry{
		TenantID:    s.tenantID,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      "created",
		PerformedBy: requesterID,
		Metadata:    map[string]any{"steps": stepNames(steps), "approval_ids": ids},
	})

	s.log.Info().
		Str("entity_id", entityID).
		Str("entity_type", entityType).
		Int("approvals", len(ids)).
		Msg("Approval workflow created")
	return ids, nil
}

// Approve records an approval decision. The underlying update is
// conditional on the record still being actionable, so of two concurrent
// decisions exactly one wins and the other observes ALREADY_DECIDED.
func (s *ApprovalWorkflowService) Approve(ctx context.Context, approvalID, approverID, comment string) error {
	a, err := s.store.Get(ctx, approvalID)
	if err != nil {
		return err
	}
	if a.ApproverID != approverID {
		return apperrors.NotAuthorized("user is not the assigned approver")
	}
	if !a.Status.Actionable() {
		return apperrors.AlreadyDecided(string(a.Status))
	}

	now := time.Now().UTC()
	ok, err := s.store.CompareAndSetStatus(ctx, approvalID,
		workflow.ActionableStatuses, workflow.StatusApproved, &now, &comment)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.AlreadyDecided("decided")
	}

	metrics.Decisions.WithLabelValues(s.tenantID, "approved").Inc()
	s.notify(ctx, NotificationEvent{
		Kind:        EventApproved,
		ApprovalID:  approvalID,
		RecipientID: a.RequesterID,
		Metadata: map[string]any{
			"entity_id": a.EntityID,
			"step":      string(a.StepName),
			"comment":   comment,
		},
	})
	s.appendAudit(ctx, &workflow.AuditEntry{
		TenantID:    s.tenantID,
		EntityType:  a.EntityType,
		EntityID:    a.EntityID,
		ApprovalID:  &approvalID,
		Action:      "approved",
		PerformedBy: approverID,
		Metadata:    map[string]any{"step": string(a.StepName)},
	})

	s.log.Info().Str("approval_id", approvalID).Str("approver_id", approverID).Msg("Approval recorded")
	return nil
}

// Reject records a rejection and cascades expiry to every still-actionable
// sibling approval of the same entity. A single rejection terminates the
// whole workflow so no stale approval can be actioned afterwards.
func (s *ApprovalWorkflowService) Reject(ctx context.Context, approvalID, approverID, reason string) error {
	if reason == "" {
		return apperrors.InvalidInput("reason", "rejection reason is required")
	}

	a, err := s.store.Get(ctx, approvalID)
	if err != nil {
		return err
	}
	if a.ApproverID != approverID {
		return apperrors.NotAuthorized("user is not the assigned approver")
	}
	if !a.Status.Actionable() {
		return apperrors.AlreadyDecided(string(a.Status))
	}

	now := time.Now().UTC()
	ok, err := s.store.CompareAndSetStatus(ctx, approvalID,
		workflow.ActionableStatuses, workflow.StatusRejected, &now, &reason)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.AlreadyDecided("decided")
	}

	expired, err := s.store.ExpireSiblings(ctx, a.EntityID, a.EntityType, approvalID)
	if err != nil {
		// The rejection itself committed; surface the cascade failure.
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "rejection recorded but cascade expiry failed")
	}

	metrics.Decisions.WithLabelValues(s.tenantID, "rejected").Inc()
	s.notify(ctx, NotificationEvent{
		Kind:        EventRejected,
		ApprovalID:  approvalID,
		RecipientID: a.RequesterID,
		Metadata: map[string]any{
			"entity_id": a.EntityID,
			"step":      string(a.StepName),
			"reason":    reason,
		},
	})
	s.appendAudit(ctx, &workflow.AuditEntry{
		TenantID:    s.tenantID,
		EntityType:  a.EntityType,
		EntityID:    a.EntityID,
		ApprovalID:  &approvalID,
		Action:      "rejected",
		PerformedBy: approverID,
		Metadata:    map[string]any{"reason": reason, "expired_ids": expired},
	})

	s.log.Info().
		Str("approval_id", approvalID).
		Int("expired_siblings", len(expired)).
		Msg("Approval rejected; downstream steps expired")
	return nil
}

// EscalateOverdue flags every pending approval older than daysThreshold as
// escalated and returns the affected IDs. Safe to call repeatedly:
// already-escalated records are not returned by the pending scan, and the
// conditional update skips records decided in the meantime.
func (s *ApprovalWorkflowService) EscalateOverdue(ctx context.Context, daysThreshold int) ([]string, error) {
	if daysThreshold <= 0 {
		return nil, apperrors.InvalidInput("days_threshold", "must be positive")
	}

	overdue, err := s.store.ListPendingOlderThan(ctx, time.Duration(daysThreshold)*24*time.Hour)
	if err != nil {
		return nil, err
	}

	var escalated []string
	for _, a := range overdue {
		ok, err := s.store.CompareAndSetStatus(ctx, a.ID,
			[]workflow.Status{workflow.StatusPending}, workflow.StatusEscalated, nil, nil)
		if err != nil {
			return escalated, err
		}
		if !ok {
			continue
		}
		escalated = append(escalated, a.ID)

		s.notify(ctx, NotificationEvent{
			Kind:        EventEscalated,
			ApprovalID:  a.ID,
			RecipientID: a.ApproverID,
			Metadata: map[string]any{
				"entity_id":    a.EntityID,
				"step":         string(a.StepName),
				"days_pending": int(time.Since(a.CreatedAt).Hours() / 24),
			},
		})
		s.appendAudit(ctx, &workflow.AuditEntry{
			TenantID:    a.TenantID,
			EntityType:  a.EntityType,
			EntityID:    a.EntityID,
			ApprovalID:  &a.ID,
			Action:      "escalated",
			PerformedBy: "system",
			Metadata:    map[string]any{"days_threshold": daysThreshold},
		})
	}

	if len(escalated) > 0 {
		metrics.Escalations.WithLabelValues(s.tenantID).Add(float64(len(escalated)))
		s.log.Info().Int("escalated", len(escalated)).Int("days_threshold", daysThreshold).
			Msg("Overdue approvals escalated")
	}
	return escalated, nil
}

// ── Status and statistics ─────────────────────────────────────────────────────

// GetApprovalStatus aggregates all approvals for an entity. An entity with
// no approvals yields a defined zero-state, not an error.
func (s *ApprovalWorkflowService) GetApprovalStatus(ctx context.Context, entityID, entityType string) (*workflow.StatusSummary, error) {
	approvals, err := s.store.ListByEntity(ctx, entityID, entityType)
	if err != nil {
		return nil, err
	}

	summary := &workflow.StatusSummary{
		EntityID:   entityID,
		EntityType: entityType,
		Total:      len(approvals),
		Approvals:  make([]workflow.Approval, 0, len(approvals)),
	}
	for _, a := range approvals {
		summary.Approvals = append(summary.Approvals, *a)
		switch a.Status {
		case workflow.StatusApproved:
			summary.Approved++
		case workflow.StatusPending:
			summary.Pending++
		case workflow.StatusRejected:
			summary.Rejected++
		case workflow.StatusExpired:
			summary.Expired++
		case workflow.StatusEscalated:
			summary.Escalated++
		}
	}
	if summary.Total > 0 {
		summary.AllApproved = summary.Approved == summary.Total
		summary.CompletionRate = float64(summary.Approved) / float64(summary.Total) * 100
	}
	return summary, nil
}

// GetStatistics returns workflow metrics for a scope. Rates are computed
// over decided requests only, so pending volume does not dilute them.
func (s *ApprovalWorkflowService) GetStatistics(ctx context.Context, scope workflow.StatisticsScope) (*workflow.Statistics, error) {
	agg, err := s.store.AggregateStatistics(ctx, scope)
	if err != nil {
		return nil, err
	}

	stats := &workflow.Statistics{
		Pending:   agg.Counts[workflow.StatusPending],
		Approved:  agg.Counts[workflow.StatusApproved],
		Rejected:  agg.Counts[workflow.StatusRejected],
		Expired:   agg.Counts[workflow.StatusExpired],
		Escalated: agg.Counts[workflow.StatusEscalated],
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected + stats.Expired + stats.Escalated

	decided := stats.Approved + stats.Rejected
	if decided > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(decided) * 100
		stats.RejectionRate = float64(stats.Rejected) / float64(decided) * 100
	}
	stats.AvgApprovalTimeHours = agg.AvgApprovalTime.Hours()
	return stats, nil
}

// PendingApproval is an approval awaiting action, with its age attached.
type PendingApproval struct {
	workflow.Approval
	DaysPending int `json:"days_pending"`
}

// ListPendingForApprover returns the approvals awaiting a specific user.
func (s *ApprovalWorkflowService) ListPendingForApprover(ctx context.Context, approverID string) ([]PendingApproval, error) {
	approvals, err := s.store.ListPendingForApprover(ctx, s.tenantID, approverID)
	if err != nil {
		return nil, err
	}
	out := make([]PendingApproval, 0, len(approvals))
	for _, a := range approvals {
		out = append(out, PendingApproval{
			Approval:    *a,
			DaysPending: int(time.Since(a.CreatedAt).Hours() / 24),
		})
	}
	return out, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// notify publishes a notification intent and logs a warning on failure.
// Delivery failures never interrupt approval operations.
func (s *ApprovalWorkflowService) notify(ctx context.Context, event NotificationEvent) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Notify(ctx, event); err != nil {
		metrics.NotificationFailures.WithLabelValues(string(event.Kind)).Inc()
		s.log.Warn().Err(err).
			Str("kind", string(event.Kind)).
			Str("approval_id", event.ApprovalID).
			Msg("Failed to publish notification intent")
	}
}

// appendAudit writes an audit entry and logs a warning on failure.
func (s *ApprovalWorkflowService) appendAudit(ctx context.Context, entry *workflow.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("entity_id", entry.EntityID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func stepNames(steps []workflow.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = string(s)
	}
	return out
}
