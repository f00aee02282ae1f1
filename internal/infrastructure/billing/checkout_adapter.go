package billing

import (
	"context"
	"fmt"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"
)

// CheckoutAdapter implements one-time Stripe Checkout operations for
// credit package purchases. Prices are never taken from the client; the
// line item is built from the server-side package catalog.
type CheckoutAdapter struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewCheckoutAdapter creates a new Stripe checkout adapter
func NewCheckoutAdapter(config *StripeConfig, logger *zap.Logger) (*CheckoutAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.InitStripeClient()

	return &CheckoutAdapter{
		config: config,
		logger: logger,
	}, nil
}

// CheckoutSessionOutput contains the created Stripe checkout session
type CheckoutSessionOutput struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// SessionPaymentStatus is the authoritative payment state of a checkout
// session as reported by Stripe
type SessionPaymentStatus struct {
	SessionID     string `json:"session_id"`
	PaymentStatus string `json:"payment_status"`
	Paid          bool   `json:"paid"`
}

// CreateSession creates a Stripe Checkout session in payment mode for a
// credit package, using an inline price built from the catalog entry
func (a *CheckoutAdapter) CreateSession(ctx context.Context, userID uuid.UUID, pkg credits.Package) (*CheckoutSessionOutput, error) {
	a.logger.Debug("Creating Stripe checkout session",
		zap.String("user_id", userID.String()),
		zap.String("package_id", string(pkg.ID)))

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(pkg.Currency),
					UnitAmount: stripe.Int64(pkg.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(pkg.Name),
						Description: stripe.String(fmt.Sprintf("%d workflow credits", pkg.Credits)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(a.config.SuccessURL),
		CancelURL:         stripe.String(a.config.CancelURL),
		ClientReferenceID: stripe.String(userID.String()),
		Metadata: map[string]string{
			"user_id":    userID.String(),
			"package_id": string(pkg.ID),
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe checkout session",
			zap.String("user_id", userID.String()),
			zap.String("package_id", string(pkg.ID)),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	a.logger.Info("Created Stripe checkout session",
		zap.String("user_id", userID.String()),
		zap.String("session_id", sess.ID))

	return &CheckoutSessionOutput{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}

// RetrieveSession fetches a checkout session from Stripe and reports its
// payment status. Credits are only granted when Stripe itself reports the
// session as paid; client redirects are never trusted.
func (a *CheckoutAdapter) RetrieveSession(ctx context.Context, sessionID string) (*SessionPaymentStatus, error) {
	a.logger.Debug("Retrieving Stripe checkout session",
		zap.String("session_id", sessionID))

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(sessionID, params)
	if err != nil {
		a.logger.Error("Failed to retrieve Stripe checkout session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to retrieve checkout session: %w", err)
	}

	return &SessionPaymentStatus{
		SessionID:     sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Paid:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}, nil
}
