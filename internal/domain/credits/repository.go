package credits

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository persists credit accounts. Balance mutations are
// expressed as atomic operations rather than load-modify-store so
// concurrent requests can never overdraw or double-grant.
type AccountRepository interface {
	// GetOrCreate returns the user's account, creating it with the
	// default starting balance on first touch. The boolean reports
	// whether a new account was created.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*Account, bool, error)

	// Deduct atomically subtracts amount from the balance, failing
	// with ErrInsufficientCredits when the balance is too low and
	// ErrInvalidAmount when amount is not positive. Returns the
	// balance after the deduction.
	Deduct(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)

	// Add atomically credits amount to the balance and returns the
	// balance after the addition.
	Add(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
}

// SettlementResult reports the outcome of settling a checkout session
type SettlementResult struct {
	Purchase *Purchase
	// Balance is the account balance after settlement. When the
	// purchase was already completed it is the current balance,
	// unchanged by this call.
	Balance int64
	// AlreadyCompleted is true when a prior settlement won the race
	// and this call changed nothing.
	AlreadyCompleted bool
}

// PurchaseRepository persists purchase records and performs settlement
type PurchaseRepository interface {
	// Create stores a new pending purchase
	Create(ctx context.Context, purchase *Purchase) error

	// FindBySessionID returns the purchase for a checkout session, or
	// ErrPurchaseNotFound when no record matches
	FindBySessionID(ctx context.Context, sessionID string) (*Purchase, error)

	// ListByUser returns the user's purchases, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Purchase, int64, error)

	// Settle completes the purchase for sessionID and credits its
	// amount to the buyer's account in one transaction. The status
	// flip is conditional on the purchase still being pending, so
	// concurrent settlements credit exactly once.
	Settle(ctx context.Context, sessionID string) (*SettlementResult, error)
}

// TransactionRepository persists the append-only credit ledger
type TransactionRepository interface {
	// Create appends a ledger entry
	Create(ctx context.Context, tx *Transaction) error

	// ListByUser returns the user's ledger entries, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, int64, error)
}
