package workflow

import (
	"context"
	"encoding/json"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/domain/workflow"
	"github.com/auton8n/backend/internal/infrastructure/ai"
	"github.com/auton8n/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Generator abstracts the model backend that produces workflow
// definitions
type Generator interface {
	GenerateWorkflow(ctx context.Context, prompt string) (*ai.GenerationOutput, error)
	EnhanceWorkflow(ctx context.Context, prompt string, definition json.RawMessage) (*ai.GenerationOutput, error)
}

// GenerationService produces and enhances workflow definitions with the
// model backend, charging credits per invocation
type GenerationService struct {
	repo      workflow.Repository
	generator Generator
	ledger    CreditLedger
	eventBus  shared.EventPublisher
	logger    *zap.Logger
}

// NewGenerationService creates a new generation service
func NewGenerationService(
	repo workflow.Repository,
	generator Generator,
	ledger CreditLedger,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *GenerationService {
	return &GenerationService{
		repo:      repo,
		generator: generator,
		ledger:    ledger,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// GenerateInput contains input for generating a workflow
type GenerateInput struct {
	Prompt string `json:"prompt" binding:"required"`
	Name   string `json:"name"`
}

// EnhanceInput contains input for enhancing a stored workflow
type EnhanceInput struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Generate produces a new workflow from a prompt and stores it. The
// charge lands before the model runs and is not refunded if generation
// fails; model invocations cost money whether or not they succeed.
func (s *GenerationService) Generate(ctx context.Context, userID uuid.UUID, input GenerateInput) (*WorkflowDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "workflow", "generate")
	defer span.End()

	balance, err := s.ledger.DeductForAction(ctx, userID, credits.ActionGenerate, "")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	output, err := s.generator.GenerateWorkflow(ctx, input.Prompt)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Workflow generation failed after charge",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, err
	}

	name := input.Name
	if name == "" {
		name = output.Name
	}
	if name == "" {
		name = "Generated workflow"
	}

	wf, err := workflow.NewWorkflow(userID, name, output.Definition, workflow.SourceGenerated)
	if err != nil {
		return nil, err
	}
	wf.WithPrompt(input.Prompt)

	if err := s.repo.Create(ctx, wf); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishGenerated(ctx, wf, output.TokensUsed)

	s.logger.Info("Generated workflow",
		zap.String("user_id", userID.String()),
		zap.String("workflow_id", wf.ID.String()),
		zap.Int("tokens_used", output.TokensUsed))

	dto := ToDTO(wf, true)
	dto.Balance = &balance.Balance
	dto.TokensUsed = output.TokensUsed
	return &dto, nil
}

// Enhance revises an existing workflow's definition according to a
// prompt. The previous definition stays in place when the model fails.
func (s *GenerationService) Enhance(ctx context.Context, userID, workflowID uuid.UUID, input EnhanceInput) (*WorkflowDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "workflow", "enhance",
		telemetry.WithAttribute("workflow_id", workflowID.String()))
	defer span.End()

	wf, err := s.repo.FindByID(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.DeductForAction(ctx, userID, credits.ActionEnhance, wf.ID.String())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	output, err := s.generator.EnhanceWorkflow(ctx, input.Prompt, wf.Definition)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Workflow enhancement failed after charge",
			zap.String("user_id", userID.String()),
			zap.String("workflow_id", workflowID.String()),
			zap.Error(err))
		return nil, err
	}

	if err := wf.UpdateDefinition(output.Definition, workflow.SourceEnhanced); err != nil {
		return nil, err
	}
	wf.WithPrompt(input.Prompt)

	if err := s.repo.Update(ctx, wf); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishGenerated(ctx, wf, output.TokensUsed)

	s.logger.Info("Enhanced workflow",
		zap.String("user_id", userID.String()),
		zap.String("workflow_id", wf.ID.String()),
		zap.Int("tokens_used", output.TokensUsed))

	dto := ToDTO(wf, true)
	dto.Balance = &balance.Balance
	dto.TokensUsed = output.TokensUsed
	return &dto, nil
}

func (s *GenerationService) publishGenerated(ctx context.Context, wf *workflow.Workflow, tokensUsed int) {
	if s.eventBus == nil {
		return
	}
	event := workflow.NewGeneratedEvent(wf, int32(tokensUsed))
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish generation event",
			zap.String("workflow_id", wf.ID.String()),
			zap.Error(err))
	}
}
