package credits

import (
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event types published by the credits domain
const (
	EventTypeBalanceChanged    = "credits.balance_changed"
	EventTypePurchaseCompleted = "credits.purchase_completed"
)

// BalanceChangedEvent is published whenever an account balance moves,
// in either direction. SSE subscribers use it to push live balances.
type BalanceChangedEvent struct {
	shared.BaseDomainEvent
	Balance int64           `json:"balance"`
	Delta   int64           `json:"delta"`
	Reason  TransactionType `json:"reason"`
}

// NewBalanceChangedEvent creates a balance change event for a user
func NewBalanceChangedEvent(userID uuid.UUID, balance, delta int64, reason TransactionType) *BalanceChangedEvent {
	return &BalanceChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBalanceChanged, "credit_account", userID, userID),
		Balance:         balance,
		Delta:           delta,
		Reason:          reason,
	}
}

// PurchaseCompletedEvent is published exactly once per settled purchase
type PurchaseCompletedEvent struct {
	shared.BaseDomainEvent
	PurchaseID uuid.UUID `json:"purchase_id"`
	PackageID  PackageID `json:"package_id"`
	Credits    int64     `json:"credits"`
	SessionID  string    `json:"session_id"`
}

// NewPurchaseCompletedEvent creates a purchase completion event
func NewPurchaseCompletedEvent(purchase *Purchase) *PurchaseCompletedEvent {
	return &PurchaseCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseCompleted, "purchase", purchase.ID, purchase.UserID),
		PurchaseID:      purchase.ID,
		PackageID:       purchase.PackageID,
		Credits:         purchase.Credits,
		SessionID:       purchase.SessionID,
	}
}
