package workflow

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Source records how a workflow definition came to exist
type Source string

const (
	SourceGenerated Source = "generated"
	SourceEnhanced  Source = "enhanced"
	SourceManual    Source = "manual"
)

// IsValid checks if the source is a known workflow source
func (s Source) IsValid() bool {
	switch s {
	case SourceGenerated, SourceEnhanced, SourceManual:
		return true
	}
	return false
}

// Workflow is a stored n8n workflow definition owned by a single user.
// The definition is kept as opaque JSON; the platform stores and ships
// it to n8n but never interprets node semantics.
type Workflow struct {
	shared.BaseEntity
	OwnerID     uuid.UUID
	Name        string
	Description string
	Definition  json.RawMessage
	Source      Source
	// Prompt is the user request that produced a generated or
	// enhanced definition, kept for auditing
	Prompt string
	// RemoteID is the workflow's ID inside the n8n instance once
	// deployed, empty until then
	RemoteID   string
	Active     bool
	DeployedAt *time.Time
}

// NewWorkflow creates a workflow owned by a user
func NewWorkflow(ownerID uuid.UUID, name string, definition json.RawMessage, source Source) (*Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Workflow name is required")
	}
	if len(definition) == 0 || !json.Valid(definition) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Workflow definition must be valid JSON")
	}
	if !source.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	return &Workflow{
		BaseEntity: shared.NewBaseEntity(),
		OwnerID:    ownerID,
		Name:       name,
		Definition: definition,
		Source:     source,
	}, nil
}

// WithDescription sets the workflow description
func (w *Workflow) WithDescription(description string) *Workflow {
	w.Description = description
	return w
}

// WithPrompt records the prompt that produced this definition
func (w *Workflow) WithPrompt(prompt string) *Workflow {
	w.Prompt = prompt
	return w
}

// IsOwnedBy reports whether the workflow belongs to the given user
func (w *Workflow) IsOwnedBy(userID uuid.UUID) bool {
	return w.OwnerID == userID
}

// UpdateDefinition replaces the stored definition
func (w *Workflow) UpdateDefinition(definition json.RawMessage, source Source) error {
	if len(definition) == 0 || !json.Valid(definition) {
		return shared.NewDomainError("INVALID_INPUT", "Workflow definition must be valid JSON")
	}
	if !source.IsValid() {
		return shared.ErrInvalidInput
	}
	w.Definition = definition
	w.Source = source
	w.UpdatedAt = time.Now()
	return nil
}

// Rename changes the workflow name
func (w *Workflow) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_INPUT", "Workflow name is required")
	}
	w.Name = name
	w.UpdatedAt = time.Now()
	return nil
}

// IsDeployed reports whether the workflow exists in the n8n instance
func (w *Workflow) IsDeployed() bool {
	return w.RemoteID != ""
}

// MarkDeployed records a successful deployment to n8n
func (w *Workflow) MarkDeployed(remoteID string, at time.Time) error {
	if remoteID == "" {
		return shared.ErrInvalidInput
	}
	w.RemoteID = remoteID
	w.DeployedAt = &at
	w.UpdatedAt = at
	return nil
}

// SetActive toggles the activation state. Only deployed workflows can
// be activated.
func (w *Workflow) SetActive(active bool) error {
	if active && !w.IsDeployed() {
		return shared.NewDomainError("INVALID_STATE", "Workflow must be deployed before activation")
	}
	w.Active = active
	w.UpdatedAt = time.Now()
	return nil
}
