package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	creditsapp "github.com/auton8n/backend/internal/application/credits"
	workflowapp "github.com/auton8n/backend/internal/application/workflow"
	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/domain/workflow"
	"github.com/auton8n/backend/internal/infrastructure/ai"
	"github.com/auton8n/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type workflowTestEnv struct {
	router    *gin.Engine
	repo      *MockWorkflowRepository
	ledger    *MockLedger
	generator *MockGenerator
	deployer  *MockDeployer
	userID    uuid.UUID
}

func newWorkflowTestEnv(t *testing.T) *workflowTestEnv {
	t.Helper()

	env := &workflowTestEnv{
		repo:      new(MockWorkflowRepository),
		ledger:    new(MockLedger),
		generator: new(MockGenerator),
		deployer:  new(MockDeployer),
		userID:    uuid.New(),
	}

	svc := workflowapp.NewService(env.repo, env.ledger, zap.NewNop())
	gen := workflowapp.NewGenerationService(env.repo, env.generator, env.ledger, nopPublisher{}, zap.NewNop())
	dep := workflowapp.NewDeploymentService(env.repo, env.deployer, env.ledger, nopPublisher{}, zap.NewNop())

	h := NewWorkflowHandler(svc, gen, dep)

	router := gin.New()
	group := router.Group("/api/v1/workflows", authAs(env.userID))
	group.POST("", h.Create)
	group.GET("", h.List)
	group.POST("/generate", h.Generate)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/enhance", h.Enhance)
	group.POST("/:id/deploy", h.Deploy)
	group.POST("/:id/activate", h.Activate)
	group.POST("/:id/deactivate", h.Deactivate)
	group.GET("/:id/executions", h.ListExecutions)
	env.router = router

	return env
}

func (env *workflowTestEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

const validDefinition = `{"nodes":[{"name":"Webhook","type":"n8n-nodes-base.webhook"}],"connections":{}}`

func TestWorkflowHandler_Create(t *testing.T) {
	env := newWorkflowTestEnv(t)
	env.ledger.On("DeductForAction", mock.Anything, env.userID, credits.ActionCreate, mock.Anything).
		Return(&creditsapp.BalanceDTO{UserID: env.userID, Balance: 1245}, nil)
	env.repo.On("Create", mock.Anything, mock.MatchedBy(func(wf *workflow.Workflow) bool {
		return wf.Name == "Order sync" && wf.OwnerID == env.userID
	})).Return(nil)

	w := env.do(http.MethodPost, "/api/v1/workflows", gin.H{
		"name":       "Order sync",
		"definition": json.RawMessage(validDefinition),
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data workflowapp.WorkflowDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Order sync", resp.Data.Name)
	require.NotNil(t, resp.Data.Balance)
	assert.Equal(t, int64(1245), *resp.Data.Balance)
}

func TestWorkflowHandler_Create_MissingDefinition(t *testing.T) {
	env := newWorkflowTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/workflows", gin.H{"name": "No body"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.ledger.AssertNotCalled(t, "DeductForAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflowHandler_Create_InsufficientCredits(t *testing.T) {
	env := newWorkflowTestEnv(t)
	env.ledger.On("DeductForAction", mock.Anything, env.userID, credits.ActionCreate, mock.Anything).
		Return(nil, shared.ErrInsufficientCredits)

	w := env.do(http.MethodPost, "/api/v1/workflows", gin.H{
		"name":       "Order sync",
		"definition": json.RawMessage(validDefinition),
	})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeInsufficientCredits, resp.Error.Code)

	env.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestWorkflowHandler_Get_InvalidID(t *testing.T) {
	env := newWorkflowTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/workflows/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowHandler_Get_NotFound(t *testing.T) {
	env := newWorkflowTestEnv(t)
	id := uuid.New()
	env.repo.On("FindByID", mock.Anything, env.userID, id).Return(nil, shared.ErrNotFound)

	w := env.do(http.MethodGet, "/api/v1/workflows/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflowHandler_Generate(t *testing.T) {
	env := newWorkflowTestEnv(t)
	env.ledger.On("DeductForAction", mock.Anything, env.userID, credits.ActionGenerate, mock.Anything).
		Return(&creditsapp.BalanceDTO{UserID: env.userID, Balance: 1235}, nil)
	env.generator.On("GenerateWorkflow", mock.Anything, "sync orders to sheets").
		Return(&ai.GenerationOutput{
			Name:       "Order sheet sync",
			Definition: json.RawMessage(validDefinition),
			TokensUsed: 1024,
		}, nil)
	env.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	w := env.do(http.MethodPost, "/api/v1/workflows/generate", gin.H{"prompt": "sync orders to sheets"})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data workflowapp.WorkflowDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Order sheet sync", resp.Data.Name)
	assert.Equal(t, 1024, resp.Data.TokensUsed)
}

func TestWorkflowHandler_Generate_MissingPrompt(t *testing.T) {
	env := newWorkflowTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/workflows/generate", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.ledger.AssertNotCalled(t, "DeductForAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflowHandler_Activate_NotDeployed(t *testing.T) {
	env := newWorkflowTestEnv(t)
	wf, err := workflow.NewWorkflow(env.userID, "Draft", json.RawMessage(validDefinition), workflow.SourceManual)
	require.NoError(t, err)
	env.repo.On("FindByID", mock.Anything, env.userID, wf.ID).Return(wf, nil)

	w := env.do(http.MethodPost, "/api/v1/workflows/"+wf.ID.String()+"/activate", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env.deployer.AssertNotCalled(t, "ActivateWorkflow", mock.Anything, mock.Anything)
}

func TestWorkflowHandler_ListExecutions_InvalidLimit(t *testing.T) {
	env := newWorkflowTestEnv(t)
	id := uuid.New()

	w := env.do(http.MethodGet, "/api/v1/workflows/"+id.String()+"/executions?limit=zero", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
