package persistence

import (
	"context"
	"fmt"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCreditTransactionRepository implements credits.TransactionRepository using GORM
type GormCreditTransactionRepository struct {
	db *gorm.DB
}

// NewGormCreditTransactionRepository creates a new credit transaction repository
func NewGormCreditTransactionRepository(db *gorm.DB) *GormCreditTransactionRepository {
	return &GormCreditTransactionRepository{db: db}
}

// Create appends a ledger entry
func (r *GormCreditTransactionRepository) Create(ctx context.Context, tx *credits.Transaction) error {
	model := models.CreditTransactionModelFromDomain(tx)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create credit transaction: %w", err)
	}
	return nil
}

// ListByUser returns the user's ledger entries, newest first
func (r *GormCreditTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*credits.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CreditTransactionModel{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count credit transactions: %w", err)
	}

	var rows []models.CreditTransactionModel
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list credit transactions: %w", err)
	}

	txs := make([]*credits.Transaction, len(rows))
	for i := range rows {
		txs[i] = rows[i].ToDomain()
	}
	return txs, total, nil
}

// Ensure GormCreditTransactionRepository implements the repository interface
var _ credits.TransactionRepository = (*GormCreditTransactionRepository)(nil)
