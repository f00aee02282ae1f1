package workflow

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists workflows. All reads are owner-scoped: a user can
// never see or touch another user's workflows.
type Repository interface {
	// Create stores a new workflow
	Create(ctx context.Context, wf *Workflow) error

	// FindByID returns the workflow if it exists and belongs to
	// ownerID, ErrNotFound otherwise
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*Workflow, error)

	// ListByOwner returns the owner's workflows, newest first
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Workflow, int64, error)

	// Update persists changes to an existing workflow
	Update(ctx context.Context, wf *Workflow) error

	// Delete removes the workflow if it belongs to ownerID
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}
