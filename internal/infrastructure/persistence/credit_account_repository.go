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

// GormCreditAccountRepository implements credits.AccountRepository using GORM
type GormCreditAccountRepository struct {
	db *gorm.DB
}

// NewGormCreditAccountRepository creates a new credit account repository
func NewGormCreditAccountRepository(db *gorm.DB) *GormCreditAccountRepository {
	return &GormCreditAccountRepository{db: db}
}

// GetOrCreate returns the user's account, creating it with the default
// starting balance on first touch. Creation uses an insert guarded by
// the unique index on user_id, so two concurrent first touches resolve
// to a single account and a single initial grant.
func (r *GormCreditAccountRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*credits.Account, bool, error) {
	var model models.CreditAccountModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	if err == nil {
		return model.ToDomain(), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to load credit account: %w", err)
	}

	account := credits.NewAccount(userID)
	created := false

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := models.CreditAccountModelFromDomain(account)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(m)
		if res.Error != nil {
			return fmt.Errorf("failed to create credit account: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			// Lost the race; another request created the account
			return tx.Where("user_id = ?", userID).First(&model).Error
		}

		created = true
		model = *m

		grant, err := credits.NewGrantTransaction(userID, credits.DefaultStartingBalance)
		if err != nil {
			return err
		}
		return tx.Create(models.CreditTransactionModelFromDomain(grant)).Error
	})
	if err != nil {
		return nil, false, err
	}

	return model.ToDomain(), created, nil
}

// Deduct atomically subtracts amount from the balance. The update is
// conditional on the balance covering the amount; zero affected rows
// means the account would have been overdrawn and nothing changed.
func (r *GormCreditAccountRepository) Deduct(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, shared.ErrInvalidAmount
	}

	res := r.db.WithContext(ctx).Model(&models.CreditAccountModel{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deduct credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, shared.ErrInsufficientCredits
	}

	return r.currentBalance(ctx, userID)
}

// Add atomically credits amount to the balance
func (r *GormCreditAccountRepository) Add(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, shared.ErrInvalidAmount
	}
	return addBalanceInTx(r.db.WithContext(ctx), userID, amount)
}

// addBalanceInTx credits amount to the account's balance and bumps its
// updated_at timestamp. Settlement runs the same increment inside its
// own transaction.
func addBalanceInTx(tx *gorm.DB, userID uuid.UUID, amount int64) (int64, error) {
	res := tx.Model(&models.CreditAccountModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to add credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, shared.ErrNotFound
	}

	return balanceInTx(tx, userID)
}

func (r *GormCreditAccountRepository) currentBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Model(&models.CreditAccountModel{}).
		Where("user_id = ?", userID).
		Pluck("balance", &balance).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// Ensure GormCreditAccountRepository implements the repository interface
var _ credits.AccountRepository = (*GormCreditAccountRepository)(nil)
