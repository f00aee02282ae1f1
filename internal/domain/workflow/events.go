package workflow

import (
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types published by the workflow domain
const (
	EventTypeWorkflowGenerated = "workflow.generated"
	EventTypeWorkflowDeployed  = "workflow.deployed"
)

// GeneratedEvent is published when the AI produces a new or enhanced
// definition
type GeneratedEvent struct {
	shared.BaseDomainEvent
	WorkflowID uuid.UUID `json:"workflow_id"`
	Source     Source    `json:"source"`
	TokensUsed int32     `json:"tokens_used,omitempty"`
}

// NewGeneratedEvent creates a workflow generation event
func NewGeneratedEvent(wf *Workflow, tokensUsed int32) *GeneratedEvent {
	return &GeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWorkflowGenerated, "workflow", wf.ID, wf.OwnerID),
		WorkflowID:      wf.ID,
		Source:          wf.Source,
		TokensUsed:      tokensUsed,
	}
}

// DeployedEvent is published when a workflow is pushed to n8n
type DeployedEvent struct {
	shared.BaseDomainEvent
	WorkflowID uuid.UUID `json:"workflow_id"`
	RemoteID   string    `json:"remote_id"`
}

// NewDeployedEvent creates a workflow deployment event
func NewDeployedEvent(wf *Workflow) *DeployedEvent {
	return &DeployedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWorkflowDeployed, "workflow", wf.ID, wf.OwnerID),
		WorkflowID:      wf.ID,
		RemoteID:        wf.RemoteID,
	}
}
