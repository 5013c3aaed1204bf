package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/infrastructure/export"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-engine/internal/infrastructure/storage"
	"github.com/garyjia/approval-engine/pkg/database"
	"github.com/garyjia/approval-engine/pkg/utils"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := zap.NewNop()

	raw, err := database.New(database.Config{Path: database.InMemory, MaxOpenConns: 1, MaxIdleConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	require.NoError(t, database.NewMigrator(raw, logger).Migrate(database.Schema()))
	db := sqlite.NewDB(raw.DB, logger)

	defRepo := repository.NewDefinitionRepository(db, logger)
	instRepo := repository.NewInstanceRepository(raw.DB, logger)
	histRepo := repository.NewHistoryRepository(raw.DB, logger)
	memberRepo := repository.NewMemberRepository(raw.DB, logger)
	kv := utils.NewKVLogger(logger)

	services := Services{
		Definitions: service.NewDefinitionService(defRepo, instRepo, db, kv),
		Members:     service.NewMemberService(memberRepo, kv),
		Archive: service.NewArchiveService(defRepo, instRepo, histRepo,
			export.NewExcelHistoryExporter(logger), storage.NewLocalFileStorage(t.TempDir(), logger), kv),
		Engine: workflow.NewEngine(defRepo, instRepo, histRepo, memberRepo, db),
	}

	return NewServer(ServerConfig{Mode: gin.TestMode}, services, kv)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details []string        `json:"details"`
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != xlsxContentType {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func managerApproval() map[string]any {
	return map[string]any{
		"name":           "Expense approval",
		"organizationId": "org-1",
		"triggerType":    "EXPENSE",
		"steps": []any{
			map[string]any{
				"stepName":      "manager",
				"order":         1,
				"assigneeLogic": map[string]any{"type": "SPECIFIC_ROLE", "role": "MANAGER"},
				"actions":       []any{map[string]any{"name": "approve", "label": "Approve", "actionType": "PRIMARY", "order": 1}},
			},
		},
	}
}

func seedRoster(t *testing.T, s *Server) {
	t.Helper()
	for _, m := range []map[string]any{
		{"id": "alice", "display_name": "Alice", "roles": []string{"EMPLOYEE"}, "is_active": true},
		{"id": "mgr-1", "display_name": "Manager", "roles": []string{"MANAGER"}, "is_active": true},
	} {
		w, _ := do(t, s, http.MethodPost, "/api/v1/organizations/org-1/members", m)
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func createDefinition(t *testing.T, s *Server, body any) DefinitionResponse {
	t.Helper()
	w, env := do(t, s, http.MethodPost, "/api/v1/definitions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var def DefinitionResponse
	require.NoError(t, json.Unmarshal(env.Data, &def))
	return def
}

func submit(t *testing.T, s *Server, defID string, ctx map[string]any) entity.WorkflowInstance {
	t.Helper()
	w, env := do(t, s, http.MethodPost, "/api/v1/definitions/"+defID+"/instances",
		map[string]any{"submitted_by_id": "alice", "context": ctx})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inst entity.WorkflowInstance
	require.NoError(t, json.Unmarshal(env.Data, &inst))
	return inst
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	w, env := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestApprovalFlow(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s)

	w, env := do(t, s, http.MethodGet, "/api/v1/organizations/org-1/members", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var members []entity.Member
	require.NoError(t, json.Unmarshal(env.Data, &members))
	assert.Len(t, members, 2)

	def := createDefinition(t, s, managerApproval())
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, "Expense approval", def.Name)

	inst := submit(t, s, def.ID, map[string]any{"amount": 120})
	assert.Equal(t, entity.StatusInProgress, inst.Status)

	w, env = do(t, s, http.MethodGet, "/api/v1/members/mgr-1/pending?organization_id=org-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []entity.WorkflowInstance
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, inst.ID, pending[0].ID)

	w, env = do(t, s, http.MethodPost, "/api/v1/instances/"+inst.ID+"/decisions", map[string]any{
		"actor_id": "mgr-1", "action_name": "approve", "decision": "APPROVE", "step_version": inst.Version,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var decided entity.WorkflowInstance
	require.NoError(t, json.Unmarshal(env.Data, &decided))
	assert.Equal(t, entity.StatusApproved, decided.Status)
	assert.NotNil(t, decided.CompletedAt)

	w, env = do(t, s, http.MethodGet, "/api/v1/instances/"+inst.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []entity.StepExecutionRecord
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.NotEmpty(t, records)
	assert.Equal(t, entity.RecordKindInitiated, records[0].Kind)
	assert.Equal(t, entity.RecordKindDecision, records[len(records)-1].Kind)

	w, _ = do(t, s, http.MethodGet, "/api/v1/instances/"+inst.ID+"/history.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"Summary", "History"}, book.GetSheetList())

	// Decisions on a closed instance conflict
	w, _ = do(t, s, http.MethodPost, "/api/v1/instances/"+inst.ID+"/decisions", map[string]any{
		"actor_id": "mgr-1", "action_name": "approve", "decision": "APPROVE",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelInstance(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s)
	def := createDefinition(t, s, managerApproval())
	inst := submit(t, s, def.ID, nil)

	w, _ := do(t, s, http.MethodPost, "/api/v1/instances/"+inst.ID+"/cancel", map[string]any{"actor_id": "mgr-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := do(t, s, http.MethodPost, "/api/v1/instances/"+inst.ID+"/cancel",
		map[string]any{"actor_id": "alice", "reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled entity.WorkflowInstance
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, entity.StatusCancelled, cancelled.Status)
}

func TestDefinitionLifecycle(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s)
	def := createDefinition(t, s, managerApproval())

	w, env := do(t, s, http.MethodGet, "/api/v1/definitions?organization_id=org-1&active_only=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []DefinitionResponse
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)

	w, _ = do(t, s, http.MethodPost, "/api/v1/definitions/"+def.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, s, http.MethodPost, "/api/v1/definitions/"+def.ID+"/instances", map[string]any{"submitted_by_id": "alice"})
	assert.Equal(t, http.StatusConflict, w.Code, "inactive definitions accept no submissions")

	w, _ = do(t, s, http.MethodPost, "/api/v1/definitions/"+def.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	submit(t, s, def.ID, nil)

	w, _ = do(t, s, http.MethodDelete, "/api/v1/definitions/"+def.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "live instances pin the definition")

	w, env = do(t, s, http.MethodPost, "/api/v1/definitions/"+def.ID+"/lint", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lint LintResponse
	require.NoError(t, json.Unmarshal(env.Data, &lint))
	assert.Empty(t, lint.Issues)

	other := createDefinition(t, s, func() map[string]any {
		body := managerApproval()
		body["name"] = "Unused"
		return body
	}())
	w, _ = do(t, s, http.MethodDelete, "/api/v1/definitions/"+other.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, s, http.MethodGet, "/api/v1/definitions/"+other.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateApprovalDefinition(t *testing.T) {
	s := newTestServer(t)
	w, env := do(t, s, http.MethodPost, "/api/v1/definitions/approval", map[string]any{
		"name":           "Purchase",
		"organizationId": "org-1",
		"steps": []any{map[string]any{
			"stepNumber": 1,
			"name":       "Department",
			"actions":    []any{map[string]any{"type": "SPECIFIC_ROLE", "approverRole": "MANAGER"}},
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var def DefinitionResponse
	require.NoError(t, json.Unmarshal(env.Data, &def))
	assert.Equal(t, entity.TriggerTypeExpense, def.TriggerType)
	require.Len(t, def.Steps, 1)
	assert.Equal(t, "approve", def.Steps[0].Actions[0].Name)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	seedRoster(t, s)
	def := createDefinition(t, s, managerApproval())
	inst := submit(t, s, def.ID, nil)

	gated := managerApproval()
	gated["name"] = "Large expenses"
	gated["steps"].([]any)[0].(map[string]any)["conditions"] = []any{
		map[string]any{"type": "AMOUNT_RANGE", "minAmount": 1000},
	}
	gatedDef := createDefinition(t, s, gated)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"malformed body", http.MethodPost, "/api/v1/instances/" + inst.ID + "/decisions", map[string]any{"actor_id": "mgr-1"}, http.StatusBadRequest},
		{"invalid decision", http.MethodPost, "/api/v1/instances/" + inst.ID + "/decisions",
			map[string]any{"actor_id": "mgr-1", "action_name": "approve", "decision": "MAYBE"}, http.StatusBadRequest},
		{"undeclared action", http.MethodPost, "/api/v1/instances/" + inst.ID + "/decisions",
			map[string]any{"actor_id": "mgr-1", "action_name": "escalate", "decision": "APPROVE"}, http.StatusBadRequest},
		{"not an approver", http.MethodPost, "/api/v1/instances/" + inst.ID + "/decisions",
			map[string]any{"actor_id": "alice", "action_name": "approve", "decision": "APPROVE"}, http.StatusForbidden},
		{"stale step", http.MethodPost, "/api/v1/instances/" + inst.ID + "/decisions",
			map[string]any{"actor_id": "mgr-1", "action_name": "approve", "decision": "APPROVE", "step_version": 99}, http.StatusConflict},
		{"unknown instance", http.MethodGet, "/api/v1/instances/missing", nil, http.StatusNotFound},
		{"unknown definition", http.MethodPost, "/api/v1/definitions/missing/instances", map[string]any{"submitted_by_id": "alice"}, http.StatusNotFound},
		{"no applicable step", http.MethodPost, "/api/v1/definitions/" + gatedDef.ID + "/instances",
			map[string]any{"submitted_by_id": "alice", "context": map[string]any{"amount": 10}}, http.StatusUnprocessableEntity},
		{"pending without organization", http.MethodGet, "/api/v1/members/mgr-1/pending", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestCreateDefinition_ValidationDetails(t *testing.T) {
	s := newTestServer(t)
	w, env := do(t, s, http.MethodPost, "/api/v1/definitions", map[string]any{
		"name":  "",
		"steps": []any{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, env.Details)
}
