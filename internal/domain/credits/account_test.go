package credits

import (
	"testing"

	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	userID := uuid.New()
	account := NewAccount(userID)

	assert.Equal(t, userID, account.OwnerID)
	assert.Equal(t, DefaultStartingBalance, account.Balance)
	assert.NotEqual(t, uuid.Nil, account.ID)
}

func TestAccount_CanAfford(t *testing.T) {
	account := NewAccount(uuid.New())
	account.Balance = 100

	t.Run("sufficient balance", func(t *testing.T) {
		ok, err := account.CanAfford(100)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		ok, err := account.CanAfford(101)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero amount is invalid", func(t *testing.T) {
		_, err := account.CanAfford(0)
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	})

	t.Run("negative amount is invalid", func(t *testing.T) {
		_, err := account.CanAfford(-5)
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	})
}

func TestAccount_Deduct(t *testing.T) {
	t.Run("deducts within balance", func(t *testing.T) {
		account := NewAccount(uuid.New())
		account.Balance = 600

		err := account.Deduct(15)
		require.NoError(t, err)
		assert.Equal(t, int64(585), account.Balance)
	})

	t.Run("rejects overdraw without clamping", func(t *testing.T) {
		account := NewAccount(uuid.New())
		account.Balance = 100

		err := account.Deduct(150)
		assert.ErrorIs(t, err, shared.ErrInsufficientCredits)
		assert.Equal(t, int64(100), account.Balance, "failed deduction must not change the balance")
	})

	t.Run("deducting exact balance reaches zero", func(t *testing.T) {
		account := NewAccount(uuid.New())
		account.Balance = 50

		err := account.Deduct(50)
		require.NoError(t, err)
		assert.Equal(t, int64(0), account.Balance)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		account := NewAccount(uuid.New())

		assert.ErrorIs(t, account.Deduct(0), shared.ErrInvalidAmount)
		assert.ErrorIs(t, account.Deduct(-1), shared.ErrInvalidAmount)
	})
}

func TestAccount_Add(t *testing.T) {
	t.Run("adds credits", func(t *testing.T) {
		account := NewAccount(uuid.New())
		account.Balance = 100

		err := account.Add(500)
		require.NoError(t, err)
		assert.Equal(t, int64(600), account.Balance)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		account := NewAccount(uuid.New())

		assert.ErrorIs(t, account.Add(0), shared.ErrInvalidAmount)
		assert.ErrorIs(t, account.Add(-100), shared.ErrInvalidAmount)
	})
}
