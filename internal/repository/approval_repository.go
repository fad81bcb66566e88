package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
	"github.com/pesio-ai/be-doc-approvals/internal/database"
	"github.com/pesio-ai/be-doc-approvals/internal/workflow"
)

// ApprovalRepository is the Postgres implementation of the engine's
// ApprovalStore. Decision updates are single conditional statements so two
// concurrent decisions on the same record cannot both succeed.
type ApprovalRepository struct {
	db *database.DB
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db *database.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

const approvalColumns = `
	id, tenant_id, entity_type, entity_id, step_name,
	requester_id, approver_id, status, comment,
	created_at, decided_at`

// CreateMany inserts all approvals in one transaction. A failure on any
// record rolls back the whole batch.
func (r *ApprovalRepository) CreateMany(ctx context.Context, approvals []*workflow.Approval) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO approvals
			    (tenant_id, entity_type, entity_id, step_name,
			     requester_id, approver_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7::approval_status)
			RETURNING id, created_at
		`
		for _, a := range approvals {
			err := tx.QueryRow(ctx, query,
				a.TenantID,
				a.EntityType,
				a.EntityID,
				a.StepName,
				a.RequesterID,
				a.ApproverID,
				a.Status,
			).Scan(&a.ID, &a.CreatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to create approval")
			}
		}
		return nil
	})
}

// Get retrieves an approval by primary key.
func (r *ApprovalRepository) Get(ctx context.Context, id string) (*workflow.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`

	a, err := scanApproval(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("approval", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to get approval")
	}
	return a, nil
}

// CompareAndSetStatus transitions the record only when its current status
// is in expected. Returns false without error when the guard fails.
func (r *ApprovalRepository) CompareAndSetStatus(
	ctx context.Context,
	id string,
	expected []workflow.Status,
	next workflow.Status,
	decidedAt *time.Time,
	comment *string,
) (bool, error) {
	query := `
		UPDATE approvals
		SET status     = $2::approval_status,
		    decided_at = COALESCE($3, decided_at),
		    comment    = COALESCE($4, comment)
		WHERE id = $1
		  AND status = ANY($5::approval_status[])
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, next, decidedAt, comment, statusStrings(expected)).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to update approval status")
	}
	return true, nil
}

// ExpireSiblings expires every still-actionable approval of the entity
// except excludeID. One statement, so the cascade is atomic with respect to
// concurrent decisions: a record decided first is simply not matched.
func (r *ApprovalRepository) ExpireSiblings(ctx context.Context, entityID, entityType, excludeID string) ([]string, error) {
	query := `
		UPDATE approvals
		SET status = 'expired'::approval_status
		WHERE entity_id = $1
		  AND entity_type = $2
		  AND id <> $3
		  AND status IN ('pending', 'escalated')
		RETURNING id
	`

	rows, err := r.db.Query(ctx, query, entityID, entityType, excludeID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to expire sibling approvals")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to scan expired approval id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByEntity returns all approvals of an entity in creation order.
func (r *ApprovalRepository) ListByEntity(ctx context.Context, entityID, entityType string) ([]*workflow.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE entity_id = $1 AND entity_type = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, entityID, entityType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to list approvals")
	}
	defer rows.Close()

	return scanApprovals(rows)
}

// ListPendingOlderThan returns pending approvals created before now-age.
func (r *ApprovalRepository) ListPendingOlderThan(ctx context.Context, age time.Duration) ([]*workflow.Approval, error) {
	cutoff := time.Now().UTC().Add(-age)
	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE status = 'pending'
		  AND created_at < $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to list overdue approvals")
	}
	defer rows.Close()

	return scanApprovals(rows)
}

// ListPendingForApprover returns pending approvals awaiting a user.
func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, tenantID, approverID string) ([]*workflow.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approvals
		WHERE tenant_id = $1
		  AND approver_id = $2
		  AND status IN ('pending', 'escalated')
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, tenantID, approverID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to list pending approvals")
	}
	defer rows.Close()

	return scanApprovals(rows)
}

// AggregateStatistics returns status counts and the average time to
// approval, optionally scoped to one tenant.
func (r *ApprovalRepository) AggregateStatistics(ctx context.Context, scope workflow.StatisticsScope) (*workflow.AggregateStats, error) {
	countsQuery := `
		SELECT status, COUNT(*)
		FROM approvals
		WHERE ($1 = '' OR tenant_id = $1)
		GROUP BY status
	`

	rows, err := r.db.Query(ctx, countsQuery, scope.TenantID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to aggregate approval counts")
	}
	defer rows.Close()

	stats := &workflow.AggregateStats{Counts: make(map[workflow.Status]int)}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to scan status count")
		}
		stats.Counts[workflow.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to aggregate approval counts")
	}

	timingQuery := `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (decided_at - created_at))), 0)
		FROM approvals
		WHERE status = 'approved'
		  AND decided_at IS NOT NULL
		  AND ($1 = '' OR tenant_id = $1)
	`

	var avgSeconds float64
	if err := r.db.QueryRow(ctx, timingQuery, scope.TenantID).Scan(&avgSeconds); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to aggregate approval timing")
	}
	stats.AvgApprovalTime = time.Duration(avgSeconds * float64(time.Second))

	return stats, nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type approvalScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row approvalScanner) (*workflow.Approval, error) {
	a := &workflow.Approval{}
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.EntityType,
		&a.EntityID,
		&a.StepName,
		&a.RequesterID,
		&a.ApproverID,
		&a.Status,
		&a.Comment,
		&a.CreatedAt,
		&a.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanApprovals(rows pgx.Rows) ([]*workflow.Approval, error) {
	var approvals []*workflow.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to scan approval")
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

func statusStrings(statuses []workflow.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
