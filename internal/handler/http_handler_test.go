package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
	"github.com/pesio-ai/be-doc-approvals/internal/logger"
	"github.com/pesio-ai/be-doc-approvals/internal/service"
	"github.com/pesio-ai/be-doc-approvals/internal/workflow"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu        sync.Mutex
	approvals map[string]*workflow.Approval
}

func newFakeStore() *fakeStore {
	return &fakeStore{approvals: make(map[string]*workflow.Approval)}
}

func (f *fakeStore) CreateMany(ctx context.Context, approvals []*workflow.Approval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range approvals {
		a.ID = uuid.NewString()
		a.CreatedAt = time.Now().UTC()
		cp := *a
		f.approvals[a.ID] = &cp
	}
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*workflow.Approval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.approvals[id]
	if !ok {
		return nil, apperrors.NotFound("approval", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CompareAndSetStatus(ctx context.Context, id string, expected []workflow.Status, next workflow.Status, decidedAt *time.Time, comment *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.approvals[id]
	if !ok {
		return false, nil
	}
	for _, s := range expected {
		if a.Status == s {
			a.Status = next
			if decidedAt != nil {
				a.DecidedAt = decidedAt
			}
			if comment != nil {
				a.Comment = comment
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ExpireSiblings(ctx context.Context, entityID, entityType, excludeID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []string
	for id, a := range f.approvals {
		if id != excludeID && a.EntityID == entityID && a.EntityType == entityType && a.Status.Actionable() {
			a.Status = workflow.StatusExpired
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (f *fakeStore) ListByEntity(ctx context.Context, entityID, entityType string) ([]*workflow.Approval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*workflow.Approval
	for _, a := range f.approvals {
		if a.EntityID == entityID && a.EntityType == entityType {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPendingOlderThan(ctx context.Context, age time.Duration) ([]*workflow.Approval, error) {
	return nil, nil
}

func (f *fakeStore) ListPendingForApprover(ctx context.Context, tenantID, approverID string) ([]*workflow.Approval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*workflow.Approval
	for _, a := range f.approvals {
		if a.TenantID == tenantID && a.ApproverID == approverID && a.Status.Actionable() {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) AggregateStatistics(ctx context.Context, scope workflow.StatisticsScope) (*workflow.AggregateStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	agg := &workflow.AggregateStats{Counts: make(map[workflow.Status]int)}
	for _, a := range f.approvals {
		agg.Counts[a.Status]++
	}
	return agg, nil
}

type fakeAudit struct{}

func (fakeAudit) ListByEntity(ctx context.Context, entityID, entityType string) ([]*workflow.AuditEntry, error) {
	return []*workflow.AuditEntry{}, nil
}

// ── fixture ───────────────────────────────────────────────────────────────────

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := service.NewApprovalWorkflowService("tenant-1", "simple", store, nil, nil, nil, logger.Nop())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHTTPHandler(svc, fakeAudit{}, logger.Nop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestApprovalLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	// Create approvals for a document.
	resp := postJSON(t, srv.URL+"/api/v1/approvals", map[string]any{
		"entity_id":    "doc-1",
		"entity_type":  "contract",
		"requester_id": "user-1",
		"context":      map[string]any{},
		"approver_mapping": map[string]string{
			"manager_approval": "manager-1",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ApprovalIDs []string `json:"approval_ids"`
	}
	decodeBody(t, resp, &created)
	require.Len(t, created.ApprovalIDs, 1)

	// Approve it.
	resp = postJSON(t, srv.URL+"/api/v1/approvals/approve", map[string]string{
		"approval_id": created.ApprovalIDs[0],
		"approver_id": "manager-1",
		"comment":     "ok",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Status reflects the decision.
	resp, err := http.Get(srv.URL + "/api/v1/approvals/status?entity_id=doc-1&entity_type=contract")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary workflow.StatusSummary
	decodeBody(t, resp, &summary)
	assert.True(t, summary.AllApproved)
	assert.Equal(t, 1, summary.Approved)
}

func TestCreateApprovalsMissingApproverReturns400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/approvals", map[string]any{
		"entity_id":        "doc-2",
		"entity_type":      "contract",
		"requester_id":     "user-1",
		"context":          map[string]any{},
		"approver_mapping": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, apperrors.CodeMissingApprover, body.Error.Code)
}

func TestApproveUnknownApprovalReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/approvals/approve", map[string]string{
		"approval_id": "no-such-id",
		"approver_id": "manager-1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestDoubleDecisionReturns409(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/approvals", map[string]any{
		"entity_id":    "doc-3",
		"entity_type":  "contract",
		"requester_id": "user-1",
		"context":      map[string]any{},
		"approver_mapping": map[string]string{
			"manager_approval": "manager-1",
		},
	})
	var created struct {
		ApprovalIDs []string `json:"approval_ids"`
	}
	decodeBody(t, resp, &created)
	require.Len(t, created.ApprovalIDs, 1)

	decision := map[string]string{
		"approval_id": created.ApprovalIDs[0],
		"approver_id": "manager-1",
		"reason":      "no",
	}
	resp = postJSON(t, srv.URL+"/api/v1/approvals/reject", decision)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/approvals/reject", decision)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRuleManagementOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/rules", map[string]any{
		"name":      "High Value",
		"condition": "greater_than",
		"field":     "contract_value",
		"threshold": 1000000,
		"action":    "add_legal_review",
		"priority":  1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule workflow.Rule
	decodeBody(t, resp, &rule)
	assert.NotEmpty(t, rule.ID)

	// Evaluate a context against it.
	resp = postJSON(t, srv.URL+"/api/v1/workflow/evaluate", map[string]any{
		"context": map[string]any{"contract_value": 2000000},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var eval struct {
		Actions []string `json:"actions"`
	}
	decodeBody(t, resp, &eval)
	assert.Equal(t, []string{"add_legal_review"}, eval.Actions)

	// Delete it.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/rules?id="+rule.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()
}

func TestWorkflowStepsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/workflow/steps", map[string]any{
		"context": map[string]any{},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Steps []string `json:"steps"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, []string{"submission", "manager_approval", "completed"}, body.Steps)
}

func TestStatusRequiresQueryParams(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/approvals/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/approvals/approve")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}
