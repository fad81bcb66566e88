package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
	"github.com/pesio-ai/be-doc-approvals/internal/logger"
	"github.com/pesio-ai/be-doc-approvals/internal/service"
	"github.com/pesio-ai/be-doc-approvals/internal/workflow"
)

// AuditReader exposes the audit trail to the HTTP surface.
type AuditReader interface {
	ListByEntity(ctx context.Context, entityID, entityType string) ([]*workflow.AuditEntry, error)
}

// HTTPHandler exposes the workflow engine over REST.
type HTTPHandler struct {
	svc   *service.ApprovalWorkflowService
	audit AuditReader
	log   *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc *service.ApprovalWorkflowService, audit AuditReader, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, audit: audit, log: log}
}

// Register mounts all routes on the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/rules", h.Rules)
	mux.HandleFunc("/api/v1/workflow/evaluate", h.EvaluateRules)
	mux.HandleFunc("/api/v1/workflow/steps", h.WorkflowSteps)
	mux.HandleFunc("/api/v1/approvals", h.CreateApprovals)
	mux.HandleFunc("/api/v1/approvals/approve", h.Approve)
	mux.HandleFunc("/api/v1/approvals/reject", h.Reject)
	mux.HandleFunc("/api/v1/approvals/status", h.ApprovalStatus)
	mux.HandleFunc("/api/v1/approvals/pending", h.PendingApprovals)
	mux.HandleFunc("/api/v1/approvals/escalate", h.EscalateOverdue)
	mux.HandleFunc("/api/v1/approvals/history", h.ApprovalHistory)
	mux.HandleFunc("/api/v1/statistics", h.Statistics)
}

// ── Rules ─────────────────────────────────────────────────────────────────────

// Rules dispatches rule management requests.
func (h *HTTPHandler) Rules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"rules": h.svc.ListRules()})

	case http.MethodPost:
		var rule workflow.Rule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			writeError(w, apperrors.Validation("invalid request body"))
			return
		}
		added, err := h.svc.AddRule(r.Context(), rule)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, added)

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, apperrors.InvalidInput("id", "rule id is required"))
			return
		}
		if err := h.svc.RemoveRule(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ── Rule evaluation and step synthesis ────────────────────────────────────────

// EvaluateRules returns the actions a document context triggers.
func (h *HTTPHandler) EvaluateRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Context workflow.Context `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	actions, warnings := h.svc.EvaluateRules(req.Context)
	writeJSON(w, http.StatusOK, map[string]any{
		"actions":  actions,
		"warnings": warnings,
	})
}

// WorkflowSteps returns the synthesized step sequence for a context.
func (h *HTTPHandler) WorkflowSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Context workflow.Context `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	steps, warnings := h.svc.GetWorkflowSteps(req.Context)
	writeJSON(w, http.StatusOK, map[string]any{
		"steps":    steps,
		"warnings": warnings,
	})
}

// ── Approval lifecycle ────────────────────────────────────────────────────────

// CreateApprovals creates the approval records for a document.
func (h *HTTPHandler) CreateApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		EntityID        string                   `json:"entity_id"`
		EntityType      string                   `json:"entity_type"`
		RequesterID     string                   `json:"requester_id"`
		Context         workflow.Context         `json:"context"`
		ApproverMapping map[workflow.Step]string `json:"approver_mapping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}
	if req.EntityID == "" || req.EntityType == "" || req.RequesterID == "" {
		writeError(w, apperrors.Validation("entity_id, entity_type and requester_id are required"))
		return
	}

	ids, err := h.svc.CreateApprovals(r.Context(), req.EntityID, req.EntityType, req.RequesterID, req.Context, req.ApproverMapping)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"approval_ids": ids})
}

// Approve records an approval decision.
func (h *HTTPHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ApprovalID string `json:"approval_id"`
		ApproverID string `json:"approver_id"`
		Comment    string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	if err := h.svc.Approve(r.Context(), req.ApprovalID, req.ApproverID, req.Comment); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "approval successful"})
}

// Reject records a rejection and expires the remaining steps.
func (h *HTTPHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ApprovalID string `json:"approval_id"`
		ApproverID string `json:"approver_id"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	if err := h.svc.Reject(r.Context(), req.ApprovalID, req.ApproverID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "approval rejected"})
}

// ApprovalStatus returns the aggregate status for an entity.
func (h *HTTPHandler) ApprovalStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entityID := r.URL.Query().Get("entity_id")
	entityType := r.URL.Query().Get("entity_type")
	if entityID == "" || entityType == "" {
		writeError(w, apperrors.Validation("entity_id and entity_type are required"))
		return
	}

	summary, err := h.svc.GetApprovalStatus(r.Context(), entityID, entityType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// PendingApprovals returns approvals awaiting a user.
func (h *HTTPHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	approverID := r.URL.Query().Get("approver_id")
	if approverID == "" {
		writeError(w, apperrors.InvalidInput("approver_id", "is required"))
		return
	}

	pending, err := h.svc.ListPendingForApprover(r.Context(), approverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

// EscalateOverdue triggers an escalation sweep.
func (h *HTTPHandler) EscalateOverdue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DaysThreshold int `json:"days_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	ids, err := h.svc.EscalateOverdue(r.Context(), req.DaysThreshold)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"escalated_ids": ids})
}

// ApprovalHistory returns the audit trail for an entity.
func (h *HTTPHandler) ApprovalHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entityID := r.URL.Query().Get("entity_id")
	entityType := r.URL.Query().Get("entity_type")
	if entityID == "" || entityType == "" {
		writeError(w, apperrors.Validation("entity_id and entity_type are required"))
		return
	}

	entries, err := h.audit.ListByEntity(r.Context(), entityID, entityType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// Statistics returns workflow metrics, optionally scoped by tenant_id.
func (h *HTTPHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scope := workflow.StatisticsScope{TenantID: r.URL.Query().Get("tenant_id")}
	stats, err := h.svc.GetStatistics(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ── response helpers ──────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), map[string]any{
		"error": map[string]string{
			"code":    apperrors.Code(err),
			"message": err.Error(),
		},
	})
}
