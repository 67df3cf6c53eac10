package transaction

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/values"
)

func newTestTransaction(t *testing.T) *Transaction {
	t.Helper()

	tx, err := NewTransaction(
		uuid.New(),
		uuid.New(),
		uuid.New(),
		values.MustNewMoneyFromFloat(130, values.USD),
	)
	require.NoError(t, err)
	return tx
}

func completeTransaction(t *testing.T, tx *Transaction) {
	t.Helper()

	require.NoError(t, tx.SubmitPayment(tx.WinnerID, "https://files.example/pay.png", "1 Main St"))
	require.NoError(t, tx.SubmitShipping(tx.SellerID, "https://files.example/ship.png"))
	require.NoError(t, tx.ConfirmReceipt(tx.WinnerID))
}

func TestNewTransaction(t *testing.T) {
	t.Run("starts pending payment", func(t *testing.T) {
		tx := newTestTransaction(t)
		assert.Equal(t, StatusPendingPayment, tx.Status)
		assert.False(t, tx.IsTerminal())
	})

	t.Run("seller and winner must differ", func(t *testing.T) {
		party := uuid.New()
		_, err := NewTransaction(uuid.New(), party, party, values.MustNewMoneyFromFloat(10, values.USD))
		require.Error(t, err)
	})

	t.Run("final price must be positive", func(t *testing.T) {
		_, err := NewTransaction(uuid.New(), uuid.New(), uuid.New(), values.Zero(values.USD))
		require.Error(t, err)
	})
}

func TestTransaction_HappyPath(t *testing.T) {
	tx := newTestTransaction(t)

	require.NoError(t, tx.SubmitPayment(tx.WinnerID, "https://files.example/pay.png", "1 Main St"))
	assert.Equal(t, StatusPendingShipping, tx.Status)
	assert.Equal(t, "1 Main St", tx.ShippingAddress)

	require.NoError(t, tx.SubmitShipping(tx.SellerID, "https://files.example/ship.png"))
	assert.Equal(t, StatusPendingReceipt, tx.Status)

	require.NoError(t, tx.ConfirmReceipt(tx.WinnerID))
	assert.Equal(t, StatusCompleted, tx.Status)
	assert.True(t, tx.IsTerminal())
	require.NotNil(t, tx.ClosedAt)
}

func TestTransaction_Guards(t *testing.T) {
	t.Run("wrong actor for payment", func(t *testing.T) {
		tx := newTestTransaction(t)
		err := tx.SubmitPayment(tx.SellerID, "https://files.example/pay.png", "1 Main St")
		assert.ErrorIs(t, err, errors.ErrUnauthorizedActor)
		assert.Equal(t, StatusPendingPayment, tx.Status)
	})

	t.Run("payment requires proof and address", func(t *testing.T) {
		tx := newTestTransaction(t)
		require.Error(t, tx.SubmitPayment(tx.WinnerID, "", "1 Main St"))
		require.Error(t, tx.SubmitPayment(tx.WinnerID, "https://files.example/pay.png", ""))
		assert.Equal(t, StatusPendingPayment, tx.Status)
	})

	t.Run("shipping is seller only", func(t *testing.T) {
		tx := newTestTransaction(t)
		require.NoError(t, tx.SubmitPayment(tx.WinnerID, "https://files.example/pay.png", "1 Main St"))
		assert.ErrorIs(t, tx.SubmitShipping(tx.WinnerID, "https://files.example/ship.png"), errors.ErrUnauthorizedActor)
	})

	t.Run("out of order transition", func(t *testing.T) {
		tx := newTestTransaction(t)
		err := tx.SubmitShipping(tx.SellerID, "https://files.example/ship.png")
		assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	})
}

func TestTransaction_Cancel(t *testing.T) {
	t.Run("cancellable from every non-terminal state", func(t *testing.T) {
		for _, advance := range []int{0, 1, 2} {
			tx := newTestTransaction(t)
			if advance >= 1 {
				require.NoError(t, tx.SubmitPayment(tx.WinnerID, "https://files.example/pay.png", "1 Main St"))
			}
			if advance >= 2 {
				require.NoError(t, tx.SubmitShipping(tx.SellerID, "https://files.example/ship.png"))
			}

			require.NoError(t, tx.Cancel(tx.SellerID, "buyer unresponsive"))
			assert.Equal(t, StatusCancelled, tx.Status)
			assert.True(t, tx.IsTerminal())
		}
	})

	t.Run("seller only with a reason", func(t *testing.T) {
		tx := newTestTransaction(t)
		assert.ErrorIs(t, tx.Cancel(tx.WinnerID, "nope"), errors.ErrUnauthorizedActor)
		require.Error(t, tx.Cancel(tx.SellerID, ""))
	})

	t.Run("terminal states admit nothing", func(t *testing.T) {
		cancelled := newTestTransaction(t)
		require.NoError(t, cancelled.Cancel(cancelled.SellerID, "out of stock"))
		assert.ErrorIs(t, cancelled.Cancel(cancelled.SellerID, "again"), errors.ErrInvalidTransition)
		assert.ErrorIs(t, cancelled.SubmitPayment(cancelled.WinnerID, "https://files.example/p.png", "addr"), errors.ErrInvalidTransition)

		completed := newTestTransaction(t)
		completeTransaction(t, completed)
		assert.ErrorIs(t, completed.Cancel(completed.SellerID, "too late"), errors.ErrInvalidTransition)
	})
}

func TestTransaction_Ratings(t *testing.T) {
	t.Run("only after completion", func(t *testing.T) {
		tx := newTestTransaction(t)
		_, err := tx.PostRating(tx.WinnerID, true, "fast")
		assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	})

	t.Run("one per participant, participants only", func(t *testing.T) {
		tx := newTestTransaction(t)
		completeTransaction(t, tx)

		_, err := tx.PostRating(tx.WinnerID, true, "great seller")
		require.NoError(t, err)
		_, err = tx.PostRating(tx.SellerID, true, "prompt payment")
		require.NoError(t, err)
		assert.Len(t, tx.Ratings, 2)

		_, err = tx.PostRating(tx.WinnerID, false, "changed my mind")
		require.Error(t, err)

		_, err = tx.PostRating(uuid.New(), true, "drive-by")
		assert.ErrorIs(t, err, errors.ErrUnauthorizedActor)

		assert.Len(t, tx.Ratings, 2)
	})
}
