package credits

import (
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultStartingBalance is the number of credits granted to a user the
// first time their account is touched. Accounts are created lazily: no
// row exists until the first balance read or deduction.
const DefaultStartingBalance int64 = 1250

// Account is a per-user credit balance. Balances are whole credits and
// are never allowed to go negative.
type Account struct {
	shared.BaseEntity
	OwnerID uuid.UUID
	Balance int64
}

// NewAccount creates a credit account for a user with the default
// starting balance.
func NewAccount(ownerID uuid.UUID) *Account {
	return &Account{
		BaseEntity: shared.NewBaseEntity(),
		OwnerID:    ownerID,
		Balance:    DefaultStartingBalance,
	}
}

// CanAfford reports whether the account holds at least amount credits.
// A non-positive amount is a caller bug and yields ErrInvalidAmount.
func (a *Account) CanAfford(amount int64) (bool, error) {
	if amount <= 0 {
		return false, shared.ErrInvalidAmount
	}
	return a.Balance >= amount, nil
}

// Deduct removes amount credits from the in-memory balance. It rejects
// rather than clamps: a deduction that would go below zero fails with
// ErrInsufficientCredits and leaves the balance untouched.
//
// This is the aggregate-level rule; the persistence layer enforces the
// same invariant with a conditional update so concurrent deductions
// cannot overdraw the account.
func (a *Account) Deduct(amount int64) error {
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}
	if a.Balance < amount {
		return shared.ErrInsufficientCredits
	}
	a.Balance -= amount
	return nil
}

// Add credits amount to the in-memory balance. Only purchase settlement
// calls this; there is no public top-up path outside payment.
func (a *Account) Add(amount int64) error {
	if amount <= 0 {
		return shared.ErrInvalidAmount
	}
	a.Balance += amount
	return nil
}
