package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appcredits "github.com/auton8n/backend/internal/application/credits"
	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/infrastructure/billing"
	"github.com/auton8n/backend/internal/infrastructure/persistence"
)

// fakeGateway stands in for Stripe: it mints predictable session IDs
// and reports the payment status configured per session.
type fakeGateway struct {
	nextSession int
	paid        map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{paid: make(map[string]bool)}
}

func (g *fakeGateway) CreateSession(_ context.Context, _ uuid.UUID, _ credits.Package) (*billing.CheckoutSessionOutput, error) {
	g.nextSession++
	id := fmt.Sprintf("cs_fake_%d", g.nextSession)
	return &billing.CheckoutSessionOutput{
		SessionID: id,
		URL:       "https://checkout.example.com/" + id,
	}, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, sessionID string) (*billing.SessionPaymentStatus, error) {
	paid := g.paid[sessionID]
	status := "unpaid"
	if paid {
		status = "paid"
	}
	return &billing.SessionPaymentStatus{
		SessionID:     sessionID,
		PaymentStatus: status,
		Paid:          paid,
	}, nil
}

func (g *fakeGateway) markPaid(sessionID string) {
	g.paid[sessionID] = true
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...shared.DomainEvent) error { return nil }

// TestCheckoutFlow_Integration drives the purchase journey through the
// application services against a real database.
func TestCheckoutFlow_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ctx := context.Background()
	log := zap.NewNop()

	accountRepo := persistence.NewGormCreditAccountRepository(testDB.DB)
	txRepo := persistence.NewGormCreditTransactionRepository(testDB.DB)
	purchaseRepo := persistence.NewGormPurchaseRepository(testDB.DB)
	gateway := newFakeGateway()

	ledger := appcredits.NewLedgerService(accountRepo, txRepo, nopPublisher{}, log)
	checkout := appcredits.NewCheckoutService(purchaseRepo, accountRepo, gateway, nopPublisher{}, log)

	t.Run("low balance recovers through purchase", func(t *testing.T) {
		userID := uuid.New()

		// Lazy creation grants the starting balance
		balance, err := ledger.GetBalance(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, int64(1250), balance.Balance)

		// Burn down to 100 credits
		_, err = ledger.Deduct(ctx, userID, 1150, credits.ActionDeploy, "burn-down")
		require.NoError(t, err)
		balance, err = ledger.GetBalance(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, int64(100), balance.Balance)

		// A 150 credit charge is refused outright
		_, err = ledger.Deduct(ctx, userID, 150, credits.ActionDeploy, "too-expensive")
		assert.ErrorIs(t, err, shared.ErrInsufficientCredits)
		balance, err = ledger.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance.Balance, "failed deduction must not change the balance")

		// Buy the starter package
		session, err := checkout.CreateCheckout(ctx, userID, string(credits.PackageStarter))
		require.NoError(t, err)
		assert.Equal(t, int64(500), session.Credits)
		gateway.markPaid(session.SessionID)

		verify, err := checkout.VerifyCheckout(ctx, userID, session.SessionID)
		require.NoError(t, err)
		assert.False(t, verify.AlreadyCompleted)
		assert.Equal(t, int64(600), verify.Balance)

		// The previously unaffordable spend pattern now works
		result, err := ledger.DeductForAction(ctx, userID, credits.ActionGenerate, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, int64(585), result.Balance)
	})

	t.Run("verifying twice credits only once", func(t *testing.T) {
		userID := uuid.New()

		session, err := checkout.CreateCheckout(ctx, userID, string(credits.PackageStarter))
		require.NoError(t, err)
		gateway.markPaid(session.SessionID)

		first, err := checkout.VerifyCheckout(ctx, userID, session.SessionID)
		require.NoError(t, err)
		assert.False(t, first.AlreadyCompleted)
		assert.Equal(t, int64(1750), first.Balance)

		second, err := checkout.VerifyCheckout(ctx, userID, session.SessionID)
		require.NoError(t, err)
		assert.True(t, second.AlreadyCompleted)
		assert.Equal(t, int64(1750), second.Balance)

		// Exactly one purchase settlement in the ledger
		txs, _, err := ledger.ListTransactions(ctx, userID, 50, 0)
		require.NoError(t, err)
		var purchases int
		for _, tx := range txs {
			if tx.Type == string(credits.TransactionTypePurchase) {
				purchases++
			}
		}
		assert.Equal(t, 1, purchases)
	})

	t.Run("unpaid session grants nothing", func(t *testing.T) {
		userID := uuid.New()

		session, err := checkout.CreateCheckout(ctx, userID, string(credits.PackageStarter))
		require.NoError(t, err)

		_, err = checkout.VerifyCheckout(ctx, userID, session.SessionID)
		assert.ErrorIs(t, err, shared.ErrPaymentNotCompleted)

		balance, err := ledger.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(1250), balance.Balance)

		// Payment later completes; verification now settles
		gateway.markPaid(session.SessionID)
		verify, err := checkout.VerifyCheckout(ctx, userID, session.SessionID)
		require.NoError(t, err)
		assert.Equal(t, int64(1750), verify.Balance)
	})

	t.Run("paid session without a record is rejected", func(t *testing.T) {
		// Payment exists at the provider but we never created a purchase
		gateway.markPaid("cs_unknown")
		_, err := checkout.VerifyCheckout(ctx, uuid.New(), "cs_unknown")
		assert.ErrorIs(t, err, shared.ErrPurchaseNotFound)

		_, err = checkout.VerifyCheckout(ctx, uuid.New(), "cs_never_seen")
		assert.ErrorIs(t, err, shared.ErrPaymentNotCompleted)
	})

	t.Run("unknown package is rejected before the gateway", func(t *testing.T) {
		_, err := checkout.CreateCheckout(ctx, uuid.New(), "mega")
		assert.ErrorIs(t, err, shared.ErrUnknownPackage)
	})
}
