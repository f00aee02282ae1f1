package credits

import (
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TransactionType classifies ledger entries
type TransactionType string

const (
	// TransactionTypeGrant is the initial balance granted on lazy
	// account creation
	TransactionTypeGrant TransactionType = "grant"
	// TransactionTypeDeduction is a charge for a billable action
	TransactionTypeDeduction TransactionType = "deduction"
	// TransactionTypePurchase is a settlement credit from a paid
	// checkout
	TransactionTypePurchase TransactionType = "purchase"
)

// IsValid checks if the transaction type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeGrant, TransactionTypeDeduction, TransactionTypePurchase:
		return true
	}
	return false
}

// Transaction is an append-only ledger entry recording a single balance
// change. Amount is always positive; the type says which direction the
// balance moved.
type Transaction struct {
	shared.BaseEntity
	AccountUserID uuid.UUID
	Type          TransactionType
	Amount        int64
	BalanceAfter  int64
	// Action is set for deductions, naming the billable operation
	Action Action
	// Reference links purchase settlements to the purchase record
	Reference string
	Note      string
}

// NewDeductionTransaction records a charge for a billable action
func NewDeductionTransaction(userID uuid.UUID, action Action, amount, balanceAfter int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	if !action.IsValid() {
		return nil, shared.ErrInvalidInput
	}
	return &Transaction{
		BaseEntity:    shared.NewBaseEntity(),
		AccountUserID: userID,
		Type:          TransactionTypeDeduction,
		Amount:        amount,
		BalanceAfter:  balanceAfter,
		Action:        action,
	}, nil
}

// NewPurchaseTransaction records a settlement credit from a completed
// purchase
func NewPurchaseTransaction(userID uuid.UUID, amount, balanceAfter int64, purchaseID uuid.UUID) (*Transaction, error) {
	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	return &Transaction{
		BaseEntity:    shared.NewBaseEntity(),
		AccountUserID: userID,
		Type:          TransactionTypePurchase,
		Amount:        amount,
		BalanceAfter:  balanceAfter,
		Reference:     purchaseID.String(),
	}, nil
}

// NewGrantTransaction records the initial balance granted when an
// account is created lazily
func NewGrantTransaction(userID uuid.UUID, amount int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	return &Transaction{
		BaseEntity:    shared.NewBaseEntity(),
		AccountUserID: userID,
		Type:          TransactionTypeGrant,
		Amount:        amount,
		BalanceAfter:  amount,
		Note:          "initial balance",
	}, nil
}
