package credits

import (
	"context"
	"time"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService handles credit balance reads and deductions
type LedgerService struct {
	accountRepo credits.AccountRepository
	txRepo      credits.TransactionRepository
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	accountRepo credits.AccountRepository,
	txRepo credits.TransactionRepository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// BalanceDTO represents a user's credit balance
type BalanceDTO struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance int64     `json:"balance"`
}

// TransactionDTO represents a ledger entry
type TransactionDTO struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Action       string    `json:"action,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetBalance returns the user's current balance, creating the account
// with the starting grant on first touch
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (*BalanceDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credits", "get_balance")
	defer span.End()

	account, created, err := s.accountRepo.GetOrCreate(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if created {
		s.logger.Info("Created credit account with starting balance",
			zap.String("user_id", userID.String()),
			zap.Int64("balance", account.Balance))
	}

	return &BalanceDTO{UserID: userID, Balance: account.Balance}, nil
}

// HasSufficientBalance reports whether the user can afford amount.
// Checking never mutates the balance, but it does create the account on
// first touch so a brand-new user can afford starting-grant-sized charges.
func (s *LedgerService) HasSufficientBalance(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	if amount <= 0 {
		return false, shared.ErrInvalidAmount
	}

	account, _, err := s.accountRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}

	return account.CanAfford(amount)
}

// DeductForAction charges the catalog cost of a billable action. The
// deduction is atomic and rejects rather than clamping: an account that
// cannot cover the full cost is left untouched.
func (s *LedgerService) DeductForAction(ctx context.Context, userID uuid.UUID, action credits.Action, reference string) (*BalanceDTO, error) {
	cost, ok := credits.ActionCost(action)
	if !ok {
		return nil, shared.ErrInvalidInput
	}
	return s.Deduct(ctx, userID, cost, action, reference)
}

// Deduct atomically subtracts amount from the user's balance and appends
// a ledger entry
func (s *LedgerService) Deduct(ctx context.Context, userID uuid.UUID, amount int64, action credits.Action, reference string) (*BalanceDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credits", "deduct",
		telemetry.WithAttribute("action", string(action)),
		telemetry.WithAttribute("amount", amount))
	defer span.End()

	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}

	// First touch grants the starting balance before the charge lands
	if _, _, err := s.accountRepo.GetOrCreate(ctx, userID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	balance, err := s.accountRepo.Deduct(ctx, userID, amount)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	entry, err := credits.NewDeductionTransaction(userID, action, amount, balance)
	if err != nil {
		return nil, err
	}
	entry.Reference = reference
	if err := s.txRepo.Create(ctx, entry); err != nil {
		// The balance change already landed; a missing ledger row is
		// log-worthy but must not fail the operation.
		s.logger.Error("Failed to record deduction ledger entry",
			zap.String("user_id", userID.String()),
			zap.Int64("amount", amount),
			zap.Error(err))
	}

	s.publishBalanceChanged(ctx, userID, balance, -amount, credits.TransactionTypeDeduction)

	s.logger.Info("Deducted credits",
		zap.String("user_id", userID.String()),
		zap.String("action", string(action)),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance))

	return &BalanceDTO{UserID: userID, Balance: balance}, nil
}

// ListTransactions returns the user's ledger entries, newest first
func (s *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]TransactionDTO, int64, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.txRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]TransactionDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, TransactionDTO{
			ID:           entry.ID,
			Type:         string(entry.Type),
			Amount:       entry.Amount,
			BalanceAfter: entry.BalanceAfter,
			Action:       string(entry.Action),
			Reference:    entry.Reference,
			Note:         entry.Note,
			CreatedAt:    entry.CreatedAt,
		})
	}
	return dtos, total, nil
}

func (s *LedgerService) publishBalanceChanged(ctx context.Context, userID uuid.UUID, balance, delta int64, reason credits.TransactionType) {
	if s.eventBus == nil {
		return
	}
	event := credits.NewBalanceChangedEvent(userID, balance, delta, reason)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish balance change event",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
