package credits

import (
	"context"
	"time"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/billing"
	"github.com/auton8n/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutGateway abstracts the payment provider's checkout operations
type CheckoutGateway interface {
	CreateSession(ctx context.Context, userID uuid.UUID, pkg credits.Package) (*billing.CheckoutSessionOutput, error)
	RetrieveSession(ctx context.Context, sessionID string) (*billing.SessionPaymentStatus, error)
}

// CheckoutService handles the credit purchase flow: package listing,
// checkout session creation and payment verification
type CheckoutService struct {
	purchaseRepo credits.PurchaseRepository
	accountRepo  credits.AccountRepository
	gateway      CheckoutGateway
	eventBus     shared.EventPublisher
	logger       *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	purchaseRepo credits.PurchaseRepository,
	accountRepo credits.AccountRepository,
	gateway CheckoutGateway,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		purchaseRepo: purchaseRepo,
		accountRepo:  accountRepo,
		gateway:      gateway,
		eventBus:     eventBus,
		logger:       logger,
	}
}

// PackageDTO represents a purchasable credit package
type PackageDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int64  `json:"credits"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Popular    bool   `json:"popular"`
}

// CheckoutDTO is the created checkout session returned to the client
type CheckoutDTO struct {
	SessionID   string `json:"session_id"`
	URL         string `json:"url"`
	PackageID   string `json:"package_id"`
	Credits     int64  `json:"credits"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// VerifyResultDTO is the outcome of verifying a checkout session
type VerifyResultDTO struct {
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	Credits          int64  `json:"credits"`
	Balance          int64  `json:"balance"`
	AlreadyCompleted bool   `json:"already_completed"`
}

// PurchaseDTO represents a purchase record
type PurchaseDTO struct {
	ID          uuid.UUID  `json:"id"`
	PackageID   string     `json:"package_id"`
	Credits     int64      `json:"credits"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	SessionID   string     `json:"session_id"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListPackages returns the server-side package catalog. Prices sent by
// clients are never used for anything.
func (s *CheckoutService) ListPackages() []PackageDTO {
	catalog := credits.Packages()
	dtos := make([]PackageDTO, 0, len(catalog))
	for _, pkg := range catalog {
		dtos = append(dtos, PackageDTO{
			ID:         string(pkg.ID),
			Name:       pkg.Name,
			Credits:    pkg.Credits,
			PriceCents: pkg.PriceCents,
			Currency:   pkg.Currency,
			Popular:    pkg.Popular,
		})
	}
	return dtos
}

// CreateCheckout resolves the package server-side, opens a checkout
// session with the payment provider and records a pending purchase
// keyed by the session ID
func (s *CheckoutService) CreateCheckout(ctx context.Context, userID uuid.UUID, packageID string) (*CheckoutDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "create",
		telemetry.WithAttribute("package_id", packageID))
	defer span.End()

	pkg, ok := credits.PackageByID(credits.PackageID(packageID))
	if !ok {
		return nil, shared.ErrUnknownPackage
	}

	session, err := s.gateway.CreateSession(ctx, userID, pkg)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	purchase := credits.NewPurchase(userID, pkg, session.SessionID)
	if err := s.purchaseRepo.Create(ctx, purchase); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to record pending purchase",
			zap.String("user_id", userID.String()),
			zap.String("session_id", session.SessionID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Created checkout session",
		zap.String("user_id", userID.String()),
		zap.String("package_id", packageID),
		zap.String("session_id", session.SessionID))

	return &CheckoutDTO{
		SessionID:   session.SessionID,
		URL:         session.URL,
		PackageID:   string(pkg.ID),
		Credits:     pkg.Credits,
		AmountCents: pkg.PriceCents,
		Currency:    pkg.Currency,
	}, nil
}

// VerifyCheckout confirms payment with the provider and settles the
// purchase. Verification is idempotent: a session that already settled
// reports success without granting credits again.
func (s *CheckoutService) VerifyCheckout(ctx context.Context, userID uuid.UUID, sessionID string) (*VerifyResultDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "verify",
		telemetry.WithAttribute("session_id", sessionID))
	defer span.End()

	// The provider is the only authority on payment state; the client's
	// redirect query parameters prove nothing.
	status, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !status.Paid {
		s.logger.Warn("Checkout verification for unpaid session",
			zap.String("user_id", userID.String()),
			zap.String("session_id", sessionID),
			zap.String("payment_status", status.PaymentStatus))
		return nil, shared.ErrPaymentNotCompleted
	}

	purchase, err := s.purchaseRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// A paid session with no record here, or one belonging to someone
	// else, is tampering or cross-account probing
	if purchase.UserID != userID {
		s.logger.Warn("Checkout verification for foreign session",
			zap.String("user_id", userID.String()),
			zap.String("session_id", sessionID))
		return nil, shared.ErrPurchaseNotFound
	}

	if purchase.IsCompleted() {
		account, _, err := s.accountRepo.GetOrCreate(ctx, userID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		return &VerifyResultDTO{
			SessionID:        sessionID,
			Status:           string(credits.PurchaseStatusCompleted),
			Credits:          purchase.Credits,
			Balance:          account.Balance,
			AlreadyCompleted: true,
		}, nil
	}

	result, err := s.settle(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// SettleSession settles a paid checkout session without re-checking the
// provider. Callers must have already verified payment, e.g. via a
// signed webhook event.
func (s *CheckoutService) SettleSession(ctx context.Context, sessionID string) (*VerifyResultDTO, error) {
	return s.settle(ctx, sessionID)
}

func (s *CheckoutService) settle(ctx context.Context, sessionID string) (*VerifyResultDTO, error) {
	result, err := s.purchaseRepo.Settle(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !result.AlreadyCompleted {
		s.logger.Info("Settled credit purchase",
			zap.String("user_id", result.Purchase.UserID.String()),
			zap.String("session_id", sessionID),
			zap.Int64("credits", result.Purchase.Credits),
			zap.Int64("balance", result.Balance))
		s.publishSettlementEvents(ctx, result)
	}

	return &VerifyResultDTO{
		SessionID:        sessionID,
		Status:           string(credits.PurchaseStatusCompleted),
		Credits:          result.Purchase.Credits,
		Balance:          result.Balance,
		AlreadyCompleted: result.AlreadyCompleted,
	}, nil
}

// ListPurchases returns the user's purchase history, newest first
func (s *CheckoutService) ListPurchases(ctx context.Context, userID uuid.UUID, limit, offset int) ([]PurchaseDTO, int64, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	purchases, total, err := s.purchaseRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]PurchaseDTO, 0, len(purchases))
	for _, p := range purchases {
		dtos = append(dtos, PurchaseDTO{
			ID:          p.ID,
			PackageID:   string(p.PackageID),
			Credits:     p.Credits,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			SessionID:   p.SessionID,
			Status:      string(p.Status),
			CompletedAt: p.CompletedAt,
			CreatedAt:   p.CreatedAt,
		})
	}
	return dtos, total, nil
}

func (s *CheckoutService) publishSettlementEvents(ctx context.Context, result *credits.SettlementResult) {
	if s.eventBus == nil {
		return
	}

	events := []shared.DomainEvent{
		credits.NewPurchaseCompletedEvent(result.Purchase),
		credits.NewBalanceChangedEvent(result.Purchase.UserID, result.Balance, result.Purchase.Credits, credits.TransactionTypePurchase),
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish settlement events",
			zap.String("session_id", result.Purchase.SessionID),
			zap.Error(err))
	}
}
