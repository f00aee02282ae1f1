package handler

import (
	"strconv"

	workflowapp "github.com/auton8n/backend/internal/application/workflow"
	"github.com/auton8n/backend/internal/interfaces/http/dto"
	"github.com/auton8n/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WorkflowHandler handles workflow storage and lifecycle endpoints
type WorkflowHandler struct {
	BaseHandler
	workflowService   *workflowapp.Service
	generationService *workflowapp.GenerationService
	deploymentService *workflowapp.DeploymentService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(
	workflowService *workflowapp.Service,
	generationService *workflowapp.GenerationService,
	deploymentService *workflowapp.DeploymentService,
) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService:   workflowService,
		generationService: generationService,
		deploymentService: deploymentService,
	}
}

func (h *WorkflowHandler) workflowID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid workflow ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Create saves a workflow definition supplied by the client. Saving is
// a billable action; the definition is validated before the charge.
func (h *WorkflowHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	var input workflowapp.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	wf, err := h.workflowService.Create(c.Request.Context(), userID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, wf)
}

// List returns the caller's workflows without definitions
func (h *WorkflowHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	req.Normalize()

	workflows, total, err := h.workflowService.List(c.Request.Context(), userID, req.PageSize, req.Offset())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, workflows, total, req.Page, req.PageSize)
}

// Get returns a single workflow including its definition
func (h *WorkflowHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	wf, err := h.workflowService.Get(c.Request.Context(), userID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, wf)
}

// Update edits a stored workflow's name, description, or definition.
// Editing is free.
func (h *WorkflowHandler) Update(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	var input workflowapp.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	wf, err := h.workflowService.Update(c.Request.Context(), userID, id, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, wf)
}

// Delete removes a stored workflow
func (h *WorkflowHandler) Delete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	if err := h.workflowService.Delete(c.Request.Context(), userID, id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Generate produces a workflow from a natural language prompt
func (h *WorkflowHandler) Generate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	var input workflowapp.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	wf, err := h.generationService.Generate(c.Request.Context(), userID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, wf)
}

// Enhance revises a stored workflow from a prompt
func (h *WorkflowHandler) Enhance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	var input workflowapp.EnhanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	wf, err := h.generationService.Enhance(c.Request.Context(), userID, id, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, wf)
}

// Deploy ships a stored workflow to the n8n instance
func (h *WorkflowHandler) Deploy(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	wf, err := h.deploymentService.Deploy(c.Request.Context(), userID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, wf)
}

// Activate turns a deployed workflow on
func (h *WorkflowHandler) Activate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	wf, err := h.deploymentService.Activate(c.Request.Context(), userID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, wf)
}

// Deactivate turns a deployed workflow off
func (h *WorkflowHandler) Deactivate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	wf, err := h.deploymentService.Deactivate(c.Request.Context(), userID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, wf)
}

// ListExecutions proxies the execution history of a deployed workflow
func (h *WorkflowHandler) ListExecutions(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	id, ok := h.workflowID(c)
	if !ok {
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	executions, err := h.deploymentService.ListExecutions(c.Request.Context(), userID, id, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, executions)
}
