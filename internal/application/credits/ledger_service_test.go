package credits

import (
	"context"
	"testing"

	domaincredits "github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedgerService(accountRepo *MockAccountRepository, txRepo *MockTransactionRepository, bus *MockEventPublisher) *LedgerService {
	var publisher shared.EventPublisher
	if bus != nil {
		publisher = bus
	}
	return NewLedgerService(accountRepo, txRepo, publisher, zap.NewNop())
}

func TestLedgerService_GetBalance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("returns starting balance for a new user", func(t *testing.T) {
		accountRepo := new(MockAccountRepository)
		account := domaincredits.NewAccount(userID)
		accountRepo.On("GetOrCreate", mock.Anything, userID).Return(account, true, nil)

		svc := newLedgerService(accountRepo, new(MockTransactionRepository), nil)

		balance, err := svc.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, domaincredits.DefaultStartingBalance, balance.Balance)
		accountRepo.AssertExpectations(t)
	})

	t.Run("returns existing balance unchanged", func(t *testing.T) {
		accountRepo := new(MockAccountRepository)
		account := domaincredits.NewAccount(userID)
		account.Balance = 85
		accountRepo.On("GetOrCreate", mock.Anything, userID).Return(account, false, nil)

		svc := newLedgerService(accountRepo, new(MockTransactionRepository), nil)

		balance, err := svc.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(85), balance.Balance)
	})
}

func TestLedgerService_HasSufficientBalance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("rejects non-positive amounts before touching storage", func(t *testing.T) {
		accountRepo := new(MockAccountRepository)
		svc := newLedgerService(accountRepo, new(MockTransactionRepository), nil)

		_, err := svc.HasSufficientBalance(ctx, userID, 0)
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)

		_, err = svc.HasSufficientBalance(ctx, userID, -10)
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)

		accountRepo.AssertNotCalled(t, "GetOrCreate")
	})

	t.Run("compares against current balance", func(t *testing.T) {
		accountRepo := new(MockAccountRepository)
		account := domaincredits.NewAccount(userID)
		account.Balance = 100
		accountRepo.On("GetOrCreate", mock.Anything, userID).Return(account, false, nil)

		svc := newLedgerService(accountRepo, new(MockTransactionRepository), nil)

		ok, err := svc.HasSufficientBalance(ctx, userID, 100)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.HasSufficientBalance(ctx, userID, 101)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLedgerService_DeductForAction(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("charges the action cost and records a ledger entry", func(t *testing.T) {
		accountRepo := new(MockAccountRepository)
		txRepo := new(MockTransactionRepository)
		bus := new(MockEventPublisher)

		account := domaincredits.NewAccount(userID)
		accountRepo.On("GetOrCreate", mock.Anything, userID).Return(account, false, nil)
		accountRepo.On("Deduct", mock.Anything, userID, int64(15)).Return(int64(1235), nil)
		txRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *domaincredits.Transaction) bool {
			return tx.Type == domaincredits.TransactionTypeDeduction &&
				tx.Amount == 15 &&
				tx.BalanceAfter == 1235 &&
				tx.Action == domaincredits.ActionGenerate
		})).Return(nil)
		bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

		svc := newLedgerService(accountRepo, txRepo, bus)

		balance, err := svc.DeductForAction(ctx, userID, domaincredits.ActionGenerate, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1235), balance.Balance)

		accountRepo.AssertExpectations(t)
		txRepo.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("propagates insufficient credits without a ledger entry", func(t *testing.T) {
		accountRepo := new(MockAccountRepository)
		txRepo := new(MockTransactionRepository)

		account := domaincredits.NewAccount(userID)
		account.Balance = 5
		accountRepo.On("GetOrCreate", mock.Anything, userID).Return(account, false, nil)
		accountRepo.On("Deduct", mock.Anything, userID, int64(20)).Return(int64(0), shared.ErrInsufficientCredits)

		svc := newLedgerService(accountRepo, txRepo, nil)

		_, err := svc.DeductForAction(ctx, userID, domaincredits.ActionDeploy, "")
		assert.ErrorIs(t, err, shared.ErrInsufficientCredits)
		txRepo.AssertNotCalled(t, "Create")
	})

	t.Run("rejects unknown actions", func(t *testing.T) {
		svc := newLedgerService(new(MockAccountRepository), new(MockTransactionRepository), nil)

		_, err := svc.DeductForAction(ctx, userID, domaincredits.Action("mine_bitcoin"), "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestLedgerService_Deduct(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		svc := newLedgerService(new(MockAccountRepository), new(MockTransactionRepository), nil)

		_, err := svc.Deduct(ctx, userID, 0, domaincredits.ActionGenerate, "")
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	})

	t.Run("ledger write failure does not fail the deduction", func(t *testing.T) {
		accountRepo := new(MockAccountRepository)
		txRepo := new(MockTransactionRepository)

		account := domaincredits.NewAccount(userID)
		accountRepo.On("GetOrCreate", mock.Anything, userID).Return(account, false, nil)
		accountRepo.On("Deduct", mock.Anything, userID, int64(10)).Return(int64(1240), nil)
		txRepo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

		svc := newLedgerService(accountRepo, txRepo, nil)

		balance, err := svc.Deduct(ctx, userID, 10, domaincredits.ActionEnhance, "")
		require.NoError(t, err)
		assert.Equal(t, int64(1240), balance.Balance)
	})
}
