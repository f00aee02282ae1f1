package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/domain/workflow"
	"github.com/auton8n/backend/internal/infrastructure/n8n"
	"github.com/auton8n/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deployer abstracts the n8n instance the platform ships workflows to
type Deployer interface {
	CreateWorkflow(ctx context.Context, definition json.RawMessage) (*n8n.RemoteWorkflow, error)
	ActivateWorkflow(ctx context.Context, remoteID string) error
	DeactivateWorkflow(ctx context.Context, remoteID string) error
	DeleteWorkflow(ctx context.Context, remoteID string) error
	ListExecutions(ctx context.Context, remoteID string, limit int) (*n8n.ExecutionList, error)
}

// DeploymentService ships stored workflows to the n8n instance and
// proxies lifecycle operations on deployed ones
type DeploymentService struct {
	repo     workflow.Repository
	deployer Deployer
	ledger   CreditLedger
	eventBus shared.EventPublisher
	logger   *zap.Logger
}

// NewDeploymentService creates a new deployment service
func NewDeploymentService(
	repo workflow.Repository,
	deployer Deployer,
	ledger CreditLedger,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *DeploymentService {
	return &DeploymentService{
		repo:     repo,
		deployer: deployer,
		ledger:   ledger,
		eventBus: eventBus,
		logger:   logger,
	}
}

// ExecutionDTO represents one run of a deployed workflow
type ExecutionDTO struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Mode      string     `json:"mode,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// Deploy ships a stored workflow to the n8n instance. Deploying is a
// billable action; redeploying an already deployed workflow replaces the
// remote copy and is charged again.
func (s *DeploymentService) Deploy(ctx context.Context, userID, workflowID uuid.UUID) (*WorkflowDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "workflow", "deploy",
		telemetry.WithAttribute("workflow_id", workflowID.String()))
	defer span.End()

	wf, err := s.repo.FindByID(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.DeductForAction(ctx, userID, credits.ActionDeploy, wf.ID.String())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	previousRemoteID := wf.RemoteID

	remote, err := s.deployer.CreateWorkflow(ctx, wf.Definition)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Workflow deployment failed after charge",
			zap.String("user_id", userID.String()),
			zap.String("workflow_id", workflowID.String()),
			zap.Error(err))
		return nil, err
	}

	if err := wf.MarkDeployed(remote.ID, time.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, wf); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// The replaced remote copy is orphaned otherwise
	if previousRemoteID != "" && previousRemoteID != remote.ID {
		if err := s.deployer.DeleteWorkflow(ctx, previousRemoteID); err != nil {
			s.logger.Warn("Failed to remove replaced remote workflow",
				zap.String("remote_id", previousRemoteID),
				zap.Error(err))
		}
	}

	s.publishDeployed(ctx, wf)

	s.logger.Info("Deployed workflow",
		zap.String("user_id", userID.String()),
		zap.String("workflow_id", wf.ID.String()),
		zap.String("remote_id", remote.ID))

	dto := ToDTO(wf, false)
	dto.Balance = &balance.Balance
	return &dto, nil
}

// Activate turns a deployed workflow on inside the n8n instance
func (s *DeploymentService) Activate(ctx context.Context, userID, workflowID uuid.UUID) (*WorkflowDTO, error) {
	return s.setActive(ctx, userID, workflowID, true)
}

// Deactivate turns a deployed workflow off inside the n8n instance
func (s *DeploymentService) Deactivate(ctx context.Context, userID, workflowID uuid.UUID) (*WorkflowDTO, error) {
	return s.setActive(ctx, userID, workflowID, false)
}

func (s *DeploymentService) setActive(ctx context.Context, userID, workflowID uuid.UUID, active bool) (*WorkflowDTO, error) {
	wf, err := s.repo.FindByID(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.IsDeployed() {
		return nil, shared.ErrInvalidState
	}

	if active {
		err = s.deployer.ActivateWorkflow(ctx, wf.RemoteID)
	} else {
		err = s.deployer.DeactivateWorkflow(ctx, wf.RemoteID)
	}
	if err != nil {
		return nil, err
	}

	if err := wf.SetActive(active); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, wf); err != nil {
		return nil, err
	}

	s.logger.Info("Changed workflow activation",
		zap.String("user_id", userID.String()),
		zap.String("workflow_id", wf.ID.String()),
		zap.Bool("active", active))

	dto := ToDTO(wf, false)
	return &dto, nil
}

// ListExecutions proxies the execution history of a deployed workflow
// from the n8n instance
func (s *DeploymentService) ListExecutions(ctx context.Context, userID, workflowID uuid.UUID, limit int) ([]ExecutionDTO, error) {
	wf, err := s.repo.FindByID(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.IsDeployed() {
		return nil, shared.ErrInvalidState
	}

	list, err := s.deployer.ListExecutions(ctx, wf.RemoteID, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]ExecutionDTO, 0, len(list.Data))
	for _, exec := range list.Data {
		dtos = append(dtos, ExecutionDTO{
			ID:        exec.ID,
			Status:    exec.Status,
			Mode:      exec.Mode,
			StartedAt: exec.StartedAt,
			StoppedAt: exec.StoppedAt,
		})
	}
	return dtos, nil
}

func (s *DeploymentService) publishDeployed(ctx context.Context, wf *workflow.Workflow) {
	if s.eventBus == nil {
		return
	}
	event := workflow.NewDeployedEvent(wf)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish deployment event",
			zap.String("workflow_id", wf.ID.String()),
			zap.Error(err))
	}
}
