package models

import (
	"time"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CreditAccountModel is the persistence model for the credit Account entity.
type CreditAccountModel struct {
	BaseModel
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_credit_accounts_user"`
	Balance int64     `gorm:"not null;default:0;check:balance >= 0"`
}

// TableName returns the table name for GORM
func (CreditAccountModel) TableName() string {
	return "credit_accounts"
}

// ToDomain converts the persistence model to a domain Account entity.
func (m *CreditAccountModel) ToDomain() *credits.Account {
	return &credits.Account{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		OwnerID: m.UserID,
		Balance: m.Balance,
	}
}

// FromDomain populates the persistence model from a domain Account entity.
func (m *CreditAccountModel) FromDomain(a *credits.Account) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.UserID = a.OwnerID
	m.Balance = a.Balance
}

// CreditAccountModelFromDomain creates a new persistence model from a domain Account entity.
func CreditAccountModelFromDomain(a *credits.Account) *CreditAccountModel {
	m := &CreditAccountModel{}
	m.FromDomain(a)
	return m
}

// CreditTransactionModel is the persistence model for ledger Transaction entities.
type CreditTransactionModel struct {
	BaseModel
	UserID       uuid.UUID               `gorm:"type:uuid;not null;index:idx_credit_tx_user_time,priority:1"`
	Type         credits.TransactionType `gorm:"type:varchar(20);not null;index:idx_credit_tx_type"`
	Amount       int64                   `gorm:"not null"`
	BalanceAfter int64                   `gorm:"not null"`
	Action       credits.Action          `gorm:"type:varchar(20)"`
	Reference    string                  `gorm:"type:varchar(100)"`
	Note         string                  `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (CreditTransactionModel) TableName() string {
	return "credit_transactions"
}

// ToDomain converts the persistence model to a domain Transaction entity.
func (m *CreditTransactionModel) ToDomain() *credits.Transaction {
	return &credits.Transaction{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		AccountUserID: m.UserID,
		Type:          m.Type,
		Amount:        m.Amount,
		BalanceAfter:  m.BalanceAfter,
		Action:        m.Action,
		Reference:     m.Reference,
		Note:          m.Note,
	}
}

// FromDomain populates the persistence model from a domain Transaction entity.
func (m *CreditTransactionModel) FromDomain(t *credits.Transaction) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.UserID = t.AccountUserID
	m.Type = t.Type
	m.Amount = t.Amount
	m.BalanceAfter = t.BalanceAfter
	m.Action = t.Action
	m.Reference = t.Reference
	m.Note = t.Note
}

// CreditTransactionModelFromDomain creates a new persistence model from a domain Transaction entity.
func CreditTransactionModelFromDomain(t *credits.Transaction) *CreditTransactionModel {
	m := &CreditTransactionModel{}
	m.FromDomain(t)
	return m
}

// PurchaseModel is the persistence model for the Purchase entity.
type PurchaseModel struct {
	BaseModel
	UserID      uuid.UUID              `gorm:"type:uuid;not null;index:idx_purchases_user_time,priority:1"`
	PackageID   credits.PackageID      `gorm:"type:varchar(20);not null"`
	Credits     int64                  `gorm:"not null"`
	AmountCents int64                  `gorm:"not null"`
	Currency    string                 `gorm:"type:varchar(3);not null"`
	SessionID   string                 `gorm:"type:varchar(255);not null;uniqueIndex:idx_purchases_session"`
	Status      credits.PurchaseStatus `gorm:"type:varchar(20);not null;index:idx_purchases_status"`
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (PurchaseModel) TableName() string {
	return "purchases"
}

// ToDomain converts the persistence model to a domain Purchase entity.
func (m *PurchaseModel) ToDomain() *credits.Purchase {
	return &credits.Purchase{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:      m.UserID,
		PackageID:   m.PackageID,
		Credits:     m.Credits,
		AmountCents: m.AmountCents,
		Currency:    m.Currency,
		SessionID:   m.SessionID,
		Status:      m.Status,
		CompletedAt: m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain Purchase entity.
func (m *PurchaseModel) FromDomain(p *credits.Purchase) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.UserID = p.UserID
	m.PackageID = p.PackageID
	m.Credits = p.Credits
	m.AmountCents = p.AmountCents
	m.Currency = p.Currency
	m.SessionID = p.SessionID
	m.Status = p.Status
	m.CompletedAt = p.CompletedAt
}

// PurchaseModelFromDomain creates a new persistence model from a domain Purchase entity.
func PurchaseModelFromDomain(p *credits.Purchase) *PurchaseModel {
	m := &PurchaseModel{}
	m.FromDomain(p)
	return m
}
