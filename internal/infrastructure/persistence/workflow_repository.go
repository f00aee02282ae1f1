package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/domain/workflow"
	"github.com/auton8n/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWorkflowRepository implements workflow.Repository using GORM
type GormWorkflowRepository struct {
	db *gorm.DB
}

// NewGormWorkflowRepository creates a new workflow repository
func NewGormWorkflowRepository(db *gorm.DB) *GormWorkflowRepository {
	return &GormWorkflowRepository{db: db}
}

// Create stores a new workflow
func (r *GormWorkflowRepository) Create(ctx context.Context, wf *workflow.Workflow) error {
	model := models.WorkflowModelFromDomain(wf)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// FindByID returns the workflow if it belongs to ownerID. A workflow
// that exists but belongs to someone else reads as not found so the
// API never leaks other users' workflow IDs.
func (r *GormWorkflowRepository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*workflow.Workflow, error) {
	var model models.WorkflowModel
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find workflow: %w", err)
	}
	return model.ToDomain(), nil
}

// ListByOwner returns the owner's workflows, newest first
func (r *GormWorkflowRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*workflow.Workflow, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.WorkflowModel{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	var rows []models.WorkflowModel
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*workflow.Workflow, len(rows))
	for i := range rows {
		workflows[i] = rows[i].ToDomain()
	}
	return workflows, total, nil
}

// Update persists changes to an existing workflow
func (r *GormWorkflowRepository) Update(ctx context.Context, wf *workflow.Workflow) error {
	model := models.WorkflowModelFromDomain(wf)
	res := r.db.WithContext(ctx).Model(&models.WorkflowModel{}).
		Where("id = ? AND owner_id = ?", wf.ID, wf.OwnerID).
		Select("name", "description", "definition", "source", "prompt", "remote_id", "active", "deployed_at", "updated_at").
		Updates(model)
	if res.Error != nil {
		return fmt.Errorf("failed to update workflow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the workflow if it belongs to ownerID
func (r *GormWorkflowRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.WorkflowModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete workflow: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormWorkflowRepository implements the repository interface
var _ workflow.Repository = (*GormWorkflowRepository)(nil)
