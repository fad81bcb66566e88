package repository

import (
	"context"
	"encoding/json"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
	"github.com/pesio-ai/be-doc-approvals/internal/database"
	"github.com/pesio-ai/be-doc-approvals/internal/workflow"
)

// AuditRepository appends immutable approval lifecycle records. The table
// is insert-only; there is no update or delete path.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *workflow.AuditEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeValidation, "failed to marshal audit metadata")
	}

	query := `
		INSERT INTO approval_audit_log
		    (tenant_id, entity_type, entity_id, approval_id,
		     action, performed_by, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err = r.db.QueryRow(ctx, query,
		entry.TenantID,
		entry.EntityType,
		entry.EntityID,
		entry.ApprovalID,
		entry.Action,
		entry.PerformedBy,
		metadataJSON,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to append audit entry")
	}
	return nil
}

// ListByEntity returns the audit trail for an entity, oldest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityID, entityType string) ([]*workflow.AuditEntry, error) {
	query := `
		SELECT id, tenant_id, entity_type, entity_id, approval_id,
		       action, performed_by, metadata, created_at
		FROM approval_audit_log
		WHERE entity_id = $1 AND entity_type = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, entityID, entityType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []*workflow.AuditEntry
	for rows.Next() {
		e := &workflow.AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID,
			&e.TenantID,
			&e.EntityType,
			&e.EntityID,
			&e.ApprovalID,
			&e.Action,
			&e.PerformedBy,
			&metadataJSON,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeValidation, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
