package fund_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
)

// newWithdrawableFund builds a fund holding 10000 lamports against 10000
// receipt base units at a 1:1 price, charging a 1% withdrawal fee.
func newWithdrawableFund(t *testing.T) *fund.Account {
	t.Helper()
	f := newTestFund(t)
	f.WithdrawalFeeRateBps = 100
	f.BatchThresholdSeconds = 3_600
	require.NoError(t, f.Mint(10_000))
	f.OneReceiptTokenAsSOL = 1_000_000_000
	f.SOL.ReserveAmount = 10_000
	return f
}

func TestFund_RequestWithdrawal(t *testing.T) {
	t.Parallel()

	t.Run("locks receipt tokens into the pending batch", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000

		requestID, batchID, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.NoError(t, err)
		require.Equal(t, uint64(1), requestID)
		require.Equal(t, uint64(1), batchID)
		require.Equal(t, uint64(2_000), user.LockedReceiptTokenAmount)
		require.Equal(t, uint64(2_000), f.SOL.Pending.ReceiptTokenAmount)
		require.Equal(t, uint32(1), f.SOL.Pending.NumRequests)
	})

	t.Run("rejects more than the free balance", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000
		user.LockedReceiptTokenAmount = 4_000

		_, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.ErrorIs(t, err, fund.ErrInsufficientBalance)
	})

	t.Run("rejects while withdrawals are disabled", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		f.WithdrawEnabled = false
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000

		_, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.ErrorIs(t, err, fund.ErrWithdrawDisabled)
	})

	t.Run("cancel restores balances while pending", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000

		requestID, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.NoError(t, err)
		canceled, err := f.CancelWithdrawalRequest(user, requestID)
		require.NoError(t, err)
		require.Equal(t, uint64(2_000), canceled.ReceiptTokenAmount)
		require.Zero(t, user.LockedReceiptTokenAmount)
		require.Zero(t, f.SOL.Pending.ReceiptTokenAmount)
		require.Empty(t, user.Requests)
	})

	t.Run("cancel rejected once enqueued", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000

		requestID, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.NoError(t, err)
		_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, 100)
		require.NoError(t, err)
		_, err = f.CancelWithdrawalRequest(user, requestID)
		require.ErrorIs(t, err, fund.ErrWithdrawalRequestNotCancelable)
	})
}

func TestFund_EnqueueWithdrawalBatch(t *testing.T) {
	t.Parallel()

	t.Run("threshold gates unforced enqueue", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000
		_, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.NoError(t, err)

		f.SOL.LastEnqueuedAt = 100
		_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, false, 200)
		require.ErrorIs(t, err, fund.ErrWithdrawalBatchNotEnqueuable)

		batch, err := f.EnqueueWithdrawalBatch(solana.PublicKey{}, false, 100+3_600)
		require.NoError(t, err)
		require.NotNil(t, batch)
		require.Equal(t, uint64(1), batch.BatchID)
		require.Zero(t, f.SOL.Pending.BatchID)
		require.Len(t, f.SOL.Queued, 1)

		liability, err := f.QueuedWithdrawalLiability(solana.PublicKey{})
		require.NoError(t, err)
		require.Equal(t, uint64(2_000), liability)
	})

	t.Run("empty pending batch is a no-op", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		batch, err := f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, 100)
		require.NoError(t, err)
		require.Nil(t, batch)
	})

	t.Run("queue capacity", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)

		for i := 0; i < fund.MaxQueuedBatches; i++ {
			user := fund.NewUserAccount(testPubkey(byte(10 + i)))
			user.ReceiptTokenAmount = 100
			_, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 100, int64(i))
			require.NoError(t, err)
			_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, int64(i))
			require.NoError(t, err)
		}
		user := fund.NewUserAccount(testPubkey(99))
		user.ReceiptTokenAmount = 100
		_, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 100, 99)
		require.NoError(t, err)
		_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, 99)
		require.ErrorIs(t, err, fund.ErrWithdrawalBatchQueueFull)
	})
}

func TestFund_ProcessWithdrawalBatch(t *testing.T) {
	t.Parallel()

	t.Run("converts, withholds fee and earmarks reserve", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000
		_, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.NoError(t, err)
		_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, 100)
		require.NoError(t, err)

		record, err := f.ProcessWithdrawalBatch(solana.PublicKey{}, 200)
		require.NoError(t, err)
		require.NotNil(t, record)
		require.Equal(t, uint64(1_980), record.AssetUserAmount)
		require.Equal(t, uint64(20), record.AssetFeeAmount)
		require.Equal(t, int64(200), record.ProcessedAt)
		require.Equal(t, uint64(8_000), f.SOL.ReserveAmount)
		require.Equal(t, uint64(20), f.SOL.TreasuryFeeAmount)
		require.Empty(t, f.SOL.Queued)
		require.Equal(t, uint64(1), f.SOL.LastProcessedBatchID)
	})

	t.Run("insufficient reserve leaves the batch queued", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		f.SOL.ReserveAmount = 1_000
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000
		_, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.NoError(t, err)
		_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, 100)
		require.NoError(t, err)

		_, err = f.ProcessWithdrawalBatch(solana.PublicKey{}, 200)
		require.ErrorIs(t, err, fund.ErrInsufficientReserve)
		require.Len(t, f.SOL.Queued, 1)
	})

	t.Run("empty queue is a no-op", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		record, err := f.ProcessWithdrawalBatch(solana.PublicKey{}, 200)
		require.NoError(t, err)
		require.Nil(t, record)
	})
}

func TestFund_Withdraw(t *testing.T) {
	t.Parallel()

	t.Run("pays proportional shares and burns", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		alice := fund.NewUserAccount(testPubkey(1))
		alice.ReceiptTokenAmount = 5_000
		bob := fund.NewUserAccount(testPubkey(2))
		bob.ReceiptTokenAmount = 5_000

		aliceReq, _, err := f.RequestWithdrawal(alice, solana.PublicKey{}, 3_000, 100)
		require.NoError(t, err)
		bobReq, _, err := f.RequestWithdrawal(bob, solana.PublicKey{}, 1_000, 100)
		require.NoError(t, err)
		_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, 100)
		require.NoError(t, err)
		_, err = f.ProcessWithdrawalBatch(solana.PublicKey{}, 200)
		require.NoError(t, err)

		withdrawn, fee, burnt, mint, err := f.Withdraw(alice, aliceReq)
		require.NoError(t, err)
		require.Equal(t, uint64(2_970), withdrawn)
		require.Equal(t, uint64(30), fee)
		require.Equal(t, uint64(3_000), burnt)
		require.True(t, mint.IsZero())
		require.Equal(t, uint64(2_000), alice.ReceiptTokenAmount)
		require.Zero(t, alice.LockedReceiptTokenAmount)
		require.Empty(t, alice.Requests)

		withdrawn, _, _, _, err = f.Withdraw(bob, bobReq)
		require.NoError(t, err)
		require.Equal(t, uint64(990), withdrawn)
		require.Equal(t, uint64(6_000), f.ReceiptTokenSupply)
	})

	t.Run("rejects before the batch is processed", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		user.ReceiptTokenAmount = 5_000
		requestID, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 2_000, 100)
		require.NoError(t, err)

		_, _, _, _, err = f.Withdraw(user, requestID)
		require.ErrorIs(t, err, fund.ErrWithdrawalBatchNotProcessed)

		_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, 100)
		require.NoError(t, err)
		_, _, _, _, err = f.Withdraw(user, requestID)
		require.ErrorIs(t, err, fund.ErrWithdrawalBatchNotProcessed)
	})

	t.Run("unknown request", func(t *testing.T) {
		t.Parallel()
		f := newWithdrawableFund(t)
		user := fund.NewUserAccount(testPubkey(1))
		_, _, _, _, err := f.Withdraw(user, 42)
		require.ErrorIs(t, err, fund.ErrWithdrawalRequestNotFound)
	})
}
