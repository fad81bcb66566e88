package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
	"github.com/pesio-ai/be-doc-approvals/internal/database"
	"github.com/pesio-ai/be-doc-approvals/internal/workflow"
)

// RuleRepository persists the per-tenant approval rules. Thresholds are
// stored as JSONB since their type depends on the condition (number,
// string, or list).
type RuleRepository struct {
	db *database.DB
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db *database.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Save upserts a rule for a tenant.
func (r *RuleRepository) Save(ctx context.Context, tenantID string, rule workflow.Rule) error {
	thresholdJSON, err := json.Marshal(rule.Threshold)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidation, "failed to marshal rule threshold")
	}

	query := `
		INSERT INTO approval_rules
		    (id, tenant_id, name, condition, field, threshold, action, priority, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name        = EXCLUDED.name,
		    condition   = EXCLUDED.condition,
		    field       = EXCLUDED.field,
		    threshold   = EXCLUDED.threshold,
		    action      = EXCLUDED.action,
		    priority    = EXCLUDED.priority,
		    description = EXCLUDED.description
	`

	_, err = r.db.Exec(ctx, query,
		rule.ID,
		tenantID,
		rule.Name,
		rule.Condition,
		rule.Field,
		thresholdJSON,
		rule.Action,
		rule.Priority,
		rule.Description,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to save approval rule")
	}
	return nil
}

// List returns all rules for a tenant in priority order.
func (r *RuleRepository) List(ctx context.Context, tenantID string) ([]workflow.Rule, error) {
	query := `
		SELECT id, name, condition, field, threshold, action, priority, description
		FROM approval_rules
		WHERE tenant_id = $1
		ORDER BY priority ASC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to list approval rules")
	}
	defer rows.Close()

	var rules []workflow.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Delete removes a rule.
func (r *RuleRepository) Delete(ctx context.Context, tenantID, ruleID string) error {
	query := `DELETE FROM approval_rules WHERE id = $1 AND tenant_id = $2`

	tag, err := r.db.Exec(ctx, query, ruleID, tenantID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to delete approval rule")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("rule", ruleID)
	}
	return nil
}

func scanRule(rows pgx.Rows) (workflow.Rule, error) {
	var (
		rule          workflow.Rule
		thresholdJSON []byte
	)
	err := rows.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Condition,
		&rule.Field,
		&thresholdJSON,
		&rule.Action,
		&rule.Priority,
		&rule.Description,
	)
	if err != nil {
		return workflow.Rule{}, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to scan approval rule")
	}
	if err := json.Unmarshal(thresholdJSON, &rule.Threshold); err != nil {
		return workflow.Rule{}, apperrors.Wrap(err, apperrors.CodeValidation, "failed to unmarshal rule threshold")
	}
	return rule, nil
}
