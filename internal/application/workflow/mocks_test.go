package workflow

import (
	"context"
	"encoding/json"

	appcredits "github.com/auton8n/backend/internal/application/credits"
	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	domainworkflow "github.com/auton8n/backend/internal/domain/workflow"
	"github.com/auton8n/backend/internal/infrastructure/ai"
	"github.com/auton8n/backend/internal/infrastructure/n8n"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock implementation of workflow.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, wf *domainworkflow.Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*domainworkflow.Workflow, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainworkflow.Workflow), args.Error(1)
}

func (m *MockRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domainworkflow.Workflow, int64, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domainworkflow.Workflow), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) Update(ctx context.Context, wf *domainworkflow.Workflow) error {
	args := m.Called(ctx, wf)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

// MockLedger is a mock implementation of CreditLedger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) DeductForAction(ctx context.Context, userID uuid.UUID, action credits.Action, reference string) (*appcredits.BalanceDTO, error) {
	args := m.Called(ctx, userID, action, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcredits.BalanceDTO), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
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

// MockDeployer is a mock implementation of Deployer
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

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}
