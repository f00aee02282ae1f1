package credits

import (
	"time"

	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PurchaseStatus tracks the lifecycle of a checkout
type PurchaseStatus string

const (
	// PurchaseStatusPending means a checkout session was created but
	// payment has not been confirmed. Abandoned sessions stay pending
	// indefinitely; there is no expiry transition.
	PurchaseStatusPending PurchaseStatus = "pending"
	// PurchaseStatusCompleted means payment was verified and credits
	// were settled exactly once.
	PurchaseStatusCompleted PurchaseStatus = "completed"
	// PurchaseStatusFailed is reserved; no code path currently marks a
	// purchase failed. Cancelled checkouts simply stay pending.
	PurchaseStatusFailed PurchaseStatus = "failed"
)

// IsValid checks if the status is a known purchase status
func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusCompleted, PurchaseStatusFailed:
		return true
	}
	return false
}

// Purchase records one checkout attempt. It is created pending before
// the user is redirected to the payment provider and flipped to
// completed exactly once when payment is verified.
type Purchase struct {
	shared.BaseEntity
	UserID      uuid.UUID
	PackageID   PackageID
	Credits     int64
	AmountCents int64
	Currency    string
	SessionID   string
	Status      PurchaseStatus
	CompletedAt *time.Time
}

// NewPurchase creates a pending purchase for a catalog package. The
// credit amount and price are copied from the catalog at creation time
// so later catalog changes never alter what a session settles for.
func NewPurchase(userID uuid.UUID, pkg Package, sessionID string) *Purchase {
	return &Purchase{
		BaseEntity:  shared.NewBaseEntity(),
		UserID:      userID,
		PackageID:   pkg.ID,
		Credits:     pkg.Credits,
		AmountCents: pkg.PriceCents,
		Currency:    pkg.Currency,
		SessionID:   sessionID,
		Status:      PurchaseStatusPending,
	}
}

// IsCompleted reports whether the purchase has already been settled
func (p *Purchase) IsCompleted() bool {
	return p.Status == PurchaseStatusCompleted
}

// Complete transitions the purchase to completed. Only a pending
// purchase can complete; completing twice is an invalid state error so
// callers can treat it as the idempotent no-op signal.
func (p *Purchase) Complete(at time.Time) error {
	if p.Status != PurchaseStatusPending {
		return shared.ErrInvalidState
	}
	p.Status = PurchaseStatusCompleted
	p.CompletedAt = &at
	p.UpdatedAt = at
	return nil
}
