package handler

import (
	"context"
	"encoding/json"

	creditsapp "github.com/auton8n/backend/internal/application/credits"
	workflowapp "github.com/auton8n/backend/internal/application/workflow"
	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/domain/workflow"
	"github.com/auton8n/backend/internal/infrastructure/ai"
	"github.com/auton8n/backend/internal/infrastructure/billing"
	"github.com/auton8n/backend/internal/infrastructure/n8n"
	"github.com/auton8n/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// authAs injects JWT context values the way the auth middleware would,
// so handlers can be exercised without real tokens
func authAs(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, userID.String())
		c.Next()
	}
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*credits.Account, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*credits.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccountRepository) Deduct(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Add(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) Create(ctx context.Context, purchase *credits.Purchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockPurchaseRepository) FindBySessionID(ctx context.Context, sessionID string) (*credits.Purchase, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credits.Purchase), args.Error(1)
}

func (m *MockPurchaseRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*credits.Purchase, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*credits.Purchase), args.Get(1).(int64), args.Error(2)
}

func (m *MockPurchaseRepository) Settle(ctx context.Context, sessionID string) (*credits.SettlementResult, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credits.SettlementResult), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *credits.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*credits.Transaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*credits.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockCheckoutGateway struct {
	mock.Mock
}

func (m *MockCheckoutGateway) CreateSession(ctx context.Context, userID uuid.UUID, pkg credits.Package) (*billing.CheckoutSessionOutput, error) {
	args := m.Called(ctx, userID, pkg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSessionOutput), args.Error(1)
}

func (m *MockCheckoutGateway) RetrieveSession(ctx context.Context, sessionID string) (*billing.SessionPaymentStatus, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.SessionPaymentStatus), args.Error(1)
}

type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Create(ctx context.Context, wf *workflow.Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockWorkflowRepository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*workflow.Workflow, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*workflow.Workflow, int64, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*workflow.Workflow), args.Get(1).(int64), args.Error(2)
}

func (m *MockWorkflowRepository) Update(ctx context.Context, wf *workflow.Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) DeductForAction(ctx context.Context, userID uuid.UUID, action credits.Action, reference string) (*creditsapp.BalanceDTO, error) {
	args := m.Called(ctx, userID, action, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*creditsapp.BalanceDTO), args.Error(1)
}

var _ workflowapp.CreditLedger = (*MockLedger)(nil)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...shared.DomainEvent) error { return nil }

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateWorkflow(ctx context.Context, prompt string) (*ai.GenerationOutput, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.GenerationOutput), args.Error(1)
}

func (m *MockGenerator) EnhanceWorkflow(ctx context.Context, prompt string, definition json.RawMessage) (*ai.GenerationOutput, error) {
	args := m.Called(ctx, prompt, definition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.GenerationOutput), args.Error(1)
}

type MockDeployer struct {
	mock.Mock
}

func (m *MockDeployer) CreateWorkflow(ctx context.Context, definition json.RawMessage) (*n8n.RemoteWorkflow, error) {
	args := m.Called(ctx, definition)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*n8n.RemoteWorkflow), args.Error(1)
}

func (m *MockDeployer) ActivateWorkflow(ctx context.Context, remoteID string) error {
	args := m.Called(ctx, remoteID)
	return args.Error(0)
}

func (m *MockDeployer) DeactivateWorkflow(ctx context.Context, remoteID string) error {
	args := m.Called(ctx, remoteID)
	return args.Error(0)
}

func (m *MockDeployer) DeleteWorkflow(ctx context.Context, remoteID string) error {
	args := m.Called(ctx, remoteID)
	return args.Error(0)
}

func (m *MockDeployer) ListExecutions(ctx context.Context, remoteID string, limit int) (*n8n.ExecutionList, error) {
	args := m.Called(ctx, remoteID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*n8n.ExecutionList), args.Error(1)
}
