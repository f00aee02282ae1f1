package workflow

import (
	"context"
	"encoding/json"
	"time"

	appcredits "github.com/auton8n/backend/internal/application/credits"
	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/workflow"
	"github.com/auton8n/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditLedger is the slice of the credit ledger the workflow services
// need: charging for billable actions
type CreditLedger interface {
	DeductForAction(ctx context.Context, userID uuid.UUID, action credits.Action, reference string) (*appcredits.BalanceDTO, error)
}

// Service handles workflow storage operations
type Service struct {
	repo   workflow.Repository
	ledger CreditLedger
	logger *zap.Logger
}

// NewService creates a new workflow service
func NewService(repo workflow.Repository, ledger CreditLedger, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		logger: logger,
	}
}

// WorkflowDTO represents a stored workflow
type WorkflowDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Definition  json.RawMessage `json:"definition,omitempty"`
	Source      string          `json:"source"`
	Prompt      string          `json:"prompt,omitempty"`
	RemoteID    string          `json:"remote_id,omitempty"`
	Active      bool            `json:"active"`
	DeployedAt  *time.Time      `json:"deployed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Balance     *int64          `json:"balance,omitempty"`
	TokensUsed  int             `json:"tokens_used,omitempty"`
}

// CreateInput contains input for saving a workflow manually
type CreateInput struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Definition  json.RawMessage `json:"definition" binding:"required"`
}

// UpdateInput contains input for updating a stored workflow
type UpdateInput struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Definition  json.RawMessage `json:"definition"`
}

// ToDTO converts a domain workflow to its transfer representation
func ToDTO(wf *workflow.Workflow, includeDefinition bool) WorkflowDTO {
	dto := WorkflowDTO{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Source:      string(wf.Source),
		Prompt:      wf.Prompt,
		RemoteID:    wf.RemoteID,
		Active:      wf.Active,
		DeployedAt:  wf.DeployedAt,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}
	if includeDefinition {
		dto.Definition = wf.Definition
	}
	return dto
}

// Create stores a manually authored workflow. Saving a workflow is a
// billable action; the charge lands before the row is written.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*WorkflowDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "workflow", "create")
	defer span.End()

	wf, err := workflow.NewWorkflow(userID, input.Name, input.Definition, workflow.SourceManual)
	if err != nil {
		return nil, err
	}
	wf.WithDescription(input.Description)

	balance, err := s.ledger.DeductForAction(ctx, userID, credits.ActionCreate, wf.ID.String())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.repo.Create(ctx, wf); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Stored workflow",
		zap.String("user_id", userID.String()),
		zap.String("workflow_id", wf.ID.String()),
		zap.String("source", string(wf.Source)))

	dto := ToDTO(wf, true)
	dto.Balance = &balance.Balance
	return &dto, nil
}

// Get returns one of the user's workflows with its full definition
func (s *Service) Get(ctx context.Context, userID, workflowID uuid.UUID) (*WorkflowDTO, error) {
	wf, err := s.repo.FindByID(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(wf, true)
	return &dto, nil
}

// List returns the user's workflows without definitions, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]WorkflowDTO, int64, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	workflows, total, err := s.repo.ListByOwner(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]WorkflowDTO, 0, len(workflows))
	for _, wf := range workflows {
		dtos = append(dtos, ToDTO(wf, false))
	}
	return dtos, total, nil
}

// Update applies partial changes to a stored workflow. Editing an
// existing workflow is free; only saving new ones costs credits.
func (s *Service) Update(ctx context.Context, userID, workflowID uuid.UUID, input UpdateInput) (*WorkflowDTO, error) {
	wf, err := s.repo.FindByID(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := wf.Rename(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		wf.WithDescription(*input.Description)
	}
	if len(input.Definition) > 0 {
		if err := wf.UpdateDefinition(input.Definition, workflow.SourceManual); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, wf); err != nil {
		return nil, err
	}

	dto := ToDTO(wf, true)
	return &dto, nil
}

// Delete removes a stored workflow
func (s *Service) Delete(ctx context.Context, userID, workflowID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, workflowID); err != nil {
		return err
	}

	s.logger.Info("Deleted workflow",
		zap.String("user_id", userID.String()),
		zap.String("workflow_id", workflowID.String()))
	return nil
}
