package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/billing"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeWebhookService handles Stripe webhook events. Webhooks settle
// purchases for users who paid but never returned to the success page.
type StripeWebhookService struct {
	config      *billing.StripeConfig
	checkout    *CheckoutService
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	logger      *zap.Logger
}

// StripeWebhookServiceConfig contains configuration for StripeWebhookService
type StripeWebhookServiceConfig struct {
	Config      *billing.StripeConfig
	Checkout    *CheckoutService
	Idempotency shared.IdempotencyStore
	IdemConfig  shared.IdempotencyConfig
	Logger      *zap.Logger
}

// NewStripeWebhookService creates a new StripeWebhookService
func NewStripeWebhookService(cfg StripeWebhookServiceConfig) *StripeWebhookService {
	idemConfig := cfg.IdemConfig
	if idemConfig.TTL <= 0 {
		idemConfig = shared.DefaultIdempotencyConfig()
	}
	return &StripeWebhookService{
		config:      cfg.Config,
		checkout:    cfg.Checkout,
		idempotency: cfg.Idempotency,
		idemConfig:  idemConfig,
		logger:      cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and processes a Stripe webhook event
func (s *StripeWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature", zap.Error(err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	// Stripe redelivers events; skip event IDs already handled. Two
	// concurrent deliveries can both pass this check, but settlement
	// itself is idempotent so neither can double-credit.
	if s.idempotency != nil {
		seen, err := s.idempotency.IsProcessed(ctx, event.ID)
		if err != nil {
			s.logger.Warn("Idempotency check failed, processing anyway",
				zap.String("event_id", event.ID),
				zap.Error(err))
		} else if seen {
			result.Message = "Duplicate event"
			return result, nil
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "checkout.session.async_payment_succeeded":
		err = s.handleCheckoutCompleted(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	if err != nil {
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	// Only a fully handled event is recorded; a transient settlement
	// failure leaves the ID unmarked so a redelivery gets to retry.
	if s.idempotency != nil {
		if _, err := s.idempotency.MarkProcessed(ctx, event.ID, s.idemConfig.TTL); err != nil {
			s.logger.Warn("Failed to record processed event",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	return result, nil
}

func (s *StripeWebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		// checkout.session.completed fires for delayed payment methods
		// before the money moves; the async_payment_succeeded event
		// will settle it later.
		s.logger.Info("Checkout session completed but not yet paid",
			zap.String("session_id", session.ID),
			zap.String("payment_status", string(session.PaymentStatus)))
		return nil
	}

	result, err := s.checkout.SettleSession(ctx, session.ID)
	if err != nil {
		if errors.Is(err, shared.ErrPurchaseNotFound) {
			// Webhooks can arrive for sessions created outside this
			// deployment. Acknowledge receipt to stop Stripe retries.
			s.logger.Warn("Purchase not found for checkout session",
				zap.String("session_id", session.ID))
			return nil
		}
		return err
	}

	if result.AlreadyCompleted {
		s.logger.Info("Checkout session already settled",
			zap.String("session_id", session.ID))
	}
	return nil
}
