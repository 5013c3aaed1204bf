package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/application/workflow"
	"github.com/garyjia/approval-engine/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	definitions service.DefinitionService
	members     service.MemberService
	archive     service.ArchiveService
	engine      workflow.WorkflowEngine
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		definitions: services.Definitions,
		members:     services.Members,
		archive:     services.Archive,
		engine:      services.Engine,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// DefinitionResponse is a stored definition in authoring shape plus its identity
type DefinitionResponse struct {
	ID        string  `json:"id"`
	Version   int     `json:"version"`
	ParentID  *string `json:"parentId,omitempty"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
	*service.DefinitionPayload
}

// SubmitRequest is the body of POST /definitions/:id/instances
type SubmitRequest struct {
	SubmittedByID string                `json:"submitted_by_id" binding:"required"`
	Context       entity.RequestContext `json:"context"`
}

// DecisionRequest is the body of POST /instances/:id/decisions
type DecisionRequest struct {
	ActorID     string          `json:"actor_id" binding:"required"`
	ActionName  string          `json:"action_name" binding:"required"`
	Decision    entity.Decision `json:"decision" binding:"required"`
	FormData    map[string]any  `json:"form_data"`
	StepVersion *int64          `json:"step_version"`
}

// CancelRequest is the body of POST /instances/:id/cancel
type CancelRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
	Reason  string `json:"reason"`
}

// LintResponse lists non-fatal definition problems
type LintResponse struct {
	Issues []string `json:"issues"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateDefinition handles POST /api/v1/definitions
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var payload service.DefinitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid definition: "+err.Error())
		return
	}

	def, err := h.definitions.Create(c.Request.Context(), &payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: toDefinitionResponse(def)})
}

// CreateApprovalDefinition handles POST /api/v1/definitions/approval
func (h *Handlers) CreateApprovalDefinition(c *gin.Context) {
	var payload service.ApprovalPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid approval definition: "+err.Error())
		return
	}

	def, err := h.definitions.CreateApproval(c.Request.Context(), &payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: toDefinitionResponse(def)})
}

// ListDefinitions handles GET /api/v1/definitions?organization_id=&active_only=
func (h *Handlers) ListDefinitions(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "false"))

	defs, err := h.definitions.List(c.Request.Context(), c.Query("organization_id"), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]DefinitionResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, toDefinitionResponse(def))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetDefinition handles GET /api/v1/definitions/:id
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.definitions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toDefinitionResponse(def)})
}

// UpdateDefinition handles PUT /api/v1/definitions/:id
func (h *Handlers) UpdateDefinition(c *gin.Context) {
	var payload service.DefinitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid definition: "+err.Error())
		return
	}

	def, err := h.definitions.Update(c.Request.Context(), c.Param("id"), &payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toDefinitionResponse(def)})
}

// DeleteDefinition handles DELETE /api/v1/definitions/:id
func (h *Handlers) DeleteDefinition(c *gin.Context) {
	if err := h.definitions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ActivateDefinition handles POST /api/v1/definitions/:id/activate
func (h *Handlers) ActivateDefinition(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateDefinition handles POST /api/v1/definitions/:id/deactivate
func (h *Handlers) DeactivateDefinition(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handlers) setActive(c *gin.Context, active bool) {
	if err := h.definitions.SetActive(c.Request.Context(), c.Param("id"), active); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// LintDefinition handles POST /api/v1/definitions/:id/lint
func (h *Handlers) LintDefinition(c *gin.Context) {
	issues, err := h.definitions.Lint(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := LintResponse{Issues: make([]string, 0, len(issues))}
	for _, issue := range issues {
		out.Issues = append(out.Issues, issue.Error())
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// SubmitInstance handles POST /api/v1/definitions/:id/instances
func (h *Handlers) SubmitInstance(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid submission: "+err.Error())
		return
	}

	instance, err := h.engine.Submit(c.Request.Context(), workflow.SubmitRequest{
		DefinitionID:  c.Param("id"),
		SubmittedByID: req.SubmittedByID,
		Context:       req.Context,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// GetInstance handles GET /api/v1/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.engine.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// GetHistory handles GET /api/v1/instances/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	records, err := h.engine.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if records == nil {
		records = []*entity.StepExecutionRecord{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ExportHistory handles GET /api/v1/instances/:id/history.xlsx
func (h *Handlers) ExportHistory(c *gin.Context) {
	id := c.Param("id")
	content, err := h.archive.Document(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+id+`-history.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, content)
}

// RecordDecision handles POST /api/v1/instances/:id/decisions
func (h *Handlers) RecordDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid decision: "+err.Error())
		return
	}

	instance, err := h.engine.RecordDecision(c.Request.Context(), workflow.DecisionRequest{
		InstanceID:  c.Param("id"),
		ActorID:     req.ActorID,
		ActionName:  req.ActionName,
		Decision:    req.Decision,
		FormData:    req.FormData,
		StepVersion: req.StepVersion,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// CancelInstance handles POST /api/v1/instances/:id/cancel
func (h *Handlers) CancelInstance(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid cancellation: "+err.Error())
		return
	}

	instance, err := h.engine.Cancel(c.Request.Context(), workflow.CancelRequest{
		InstanceID: c.Param("id"),
		ActorID:    req.ActorID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// PendingForMember handles GET /api/v1/members/:member_id/pending?organization_id=
func (h *Handlers) PendingForMember(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		badRequest(c, "organization_id is required")
		return
	}

	instances, err := h.engine.PendingFor(c.Request.Context(), orgID, c.Param("member_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if instances == nil {
		instances = []*entity.WorkflowInstance{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

// ListMembers handles GET /api/v1/organizations/:org_id/members
func (h *Handlers) ListMembers(c *gin.Context) {
	members, err := h.members.List(c.Request.Context(), c.Param("org_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if members == nil {
		members = []*entity.Member{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: members})
}

// UpsertMember handles POST /api/v1/organizations/:org_id/members
func (h *Handlers) UpsertMember(c *gin.Context) {
	var member entity.Member
	if err := c.ShouldBindJSON(&member); err != nil {
		badRequest(c, "invalid member: "+err.Error())
		return
	}
	member.OrganizationID = c.Param("org_id")

	saved, err := h.members.Upsert(c.Request.Context(), &member)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: saved})
}

func toDefinitionResponse(def *entity.WorkflowDefinition) DefinitionResponse {
	return DefinitionResponse{
		ID:                def.ID,
		Version:           def.Version,
		ParentID:          def.ParentID,
		CreatedAt:         def.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         def.UpdatedAt.Format(time.RFC3339),
		DefinitionPayload: service.FromDefinition(def),
	}
}
