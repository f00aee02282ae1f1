package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPurchaseRepository implements credits.PurchaseRepository using GORM
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewGormPurchaseRepository creates a new purchase repository
func NewGormPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// Create stores a new pending purchase
func (r *GormPurchaseRepository) Create(ctx context.Context, purchase *credits.Purchase) error {
	model := models.PurchaseModelFromDomain(purchase)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

// FindBySessionID returns the purchase for a checkout session
func (r *GormPurchaseRepository) FindBySessionID(ctx context.Context, sessionID string) (*credits.Purchase, error) {
	var model models.PurchaseModel
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return model.ToDomain(), nil
}

// ListByUser returns the user's purchases, newest first
func (r *GormPurchaseRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*credits.Purchase, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PurchaseModel{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	var rows []models.PurchaseModel
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchases: %w", err)
	}

	purchases := make([]*credits.Purchase, len(rows))
	for i := range rows {
		purchases[i] = rows[i].ToDomain()
	}
	return purchases, total, nil
}

// Settle completes the purchase for sessionID and credits the buyer in
// a single transaction. The status flip is conditional on the row still
// being pending, so a session verified concurrently from the redirect
// handler and the webhook credits exactly once; the loser observes
// AlreadyCompleted.
func (r *GormPurchaseRepository) Settle(ctx context.Context, sessionID string) (*credits.SettlementResult, error) {
	var result *credits.SettlementResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pm models.PurchaseModel
		if err := tx.Where("session_id = ?", sessionID).First(&pm).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrPurchaseNotFound
			}
			return fmt.Errorf("failed to load purchase: %w", err)
		}

		if pm.Status == credits.PurchaseStatusCompleted {
			balance, err := balanceInTx(tx, pm.UserID)
			if err != nil {
				return err
			}
			result = &credits.SettlementResult{
				Purchase:         pm.ToDomain(),
				Balance:          balance,
				AlreadyCompleted: true,
			}
			return nil
		}

		now := time.Now()
		res := tx.Model(&models.PurchaseModel{}).
			Where("id = ? AND status = ?", pm.ID, credits.PurchaseStatusPending).
			Updates(map[string]any{
				"status":       credits.PurchaseStatusCompleted,
				"completed_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete purchase: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// A concurrent settlement won between our read and update
			balance, err := balanceInTx(tx, pm.UserID)
			if err != nil {
				return err
			}
			pm.Status = credits.PurchaseStatusCompleted
			result = &credits.SettlementResult{
				Purchase:         pm.ToDomain(),
				Balance:          balance,
				AlreadyCompleted: true,
			}
			return nil
		}

		// Settlement may be the account's first touch; the guarded
		// insert grants the starting balance in that case
		if err := ensureAccountInTx(tx, pm.UserID); err != nil {
			return err
		}

		balance, err := addBalanceInTx(tx, pm.UserID, pm.Credits)
		if err != nil {
			return fmt.Errorf("failed to credit purchase: %w", err)
		}

		ledger, err := credits.NewPurchaseTransaction(pm.UserID, pm.Credits, balance, pm.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(models.CreditTransactionModelFromDomain(ledger)).Error; err != nil {
			return fmt.Errorf("failed to record settlement: %w", err)
		}

		pm.Status = credits.PurchaseStatusCompleted
		pm.CompletedAt = &now
		pm.UpdatedAt = now
		result = &credits.SettlementResult{
			Purchase: pm.ToDomain(),
			Balance:  balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func balanceInTx(tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.Model(&models.CreditAccountModel{}).
		Where("user_id = ?", userID).
		Pluck("balance", &balance).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

func ensureAccountInTx(tx *gorm.DB, userID uuid.UUID) error {
	account := credits.NewAccount(userID)
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(models.CreditAccountModelFromDomain(account))
	if res.Error != nil {
		return fmt.Errorf("failed to ensure credit account: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		grant, err := credits.NewGrantTransaction(userID, credits.DefaultStartingBalance)
		if err != nil {
			return err
		}
		return tx.Create(models.CreditTransactionModelFromDomain(grant)).Error
	}
	return nil
}

// Ensure GormPurchaseRepository implements the repository interface
var _ credits.PurchaseRepository = (*GormPurchaseRepository)(nil)
