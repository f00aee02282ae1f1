package models

import (
	"encoding/json"
	"time"

	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/domain/workflow"
	"github.com/google/uuid"
)

// WorkflowModel is the persistence model for the Workflow entity. The
// definition is stored as JSONB so Postgres validates it without the
// application interpreting node contents.
type WorkflowModel struct {
	BaseModel
	OwnerID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_workflows_owner_time,priority:1"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Description string          `gorm:"type:varchar(1000)"`
	Definition  json.RawMessage `gorm:"type:jsonb;not null"`
	Source      workflow.Source `gorm:"type:varchar(20);not null"`
	Prompt      string          `gorm:"type:text"`
	RemoteID    string          `gorm:"type:varchar(100);index:idx_workflows_remote"`
	Active      bool            `gorm:"not null;default:false"`
	DeployedAt  *time.Time
}

// TableName returns the table name for GORM
func (WorkflowModel) TableName() string {
	return "workflows"
}

// ToDomain converts the persistence model to a domain Workflow entity.
func (m *WorkflowModel) ToDomain() *workflow.Workflow {
	return &workflow.Workflow{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		OwnerID:     m.OwnerID,
		Name:        m.Name,
		Description: m.Description,
		Definition:  m.Definition,
		Source:      m.Source,
		Prompt:      m.Prompt,
		RemoteID:    m.RemoteID,
		Active:      m.Active,
		DeployedAt:  m.DeployedAt,
	}
}

// FromDomain populates the persistence model from a domain Workflow entity.
func (m *WorkflowModel) FromDomain(w *workflow.Workflow) {
	m.FromDomainBaseEntity(w.BaseEntity)
	m.OwnerID = w.OwnerID
	m.Name = w.Name
	m.Description = w.Description
	m.Definition = w.Definition
	m.Source = w.Source
	m.Prompt = w.Prompt
	m.RemoteID = w.RemoteID
	m.Active = w.Active
	m.DeployedAt = w.DeployedAt
}

// WorkflowModelFromDomain creates a new persistence model from a domain Workflow entity.
func WorkflowModelFromDomain(w *workflow.Workflow) *WorkflowModel {
	m := &WorkflowModel{}
	m.FromDomain(w)
	return m
}
