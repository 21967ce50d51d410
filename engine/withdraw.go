package engine

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/event"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

// RequestWithdraw locks receipt tokens into the target asset's pending
// withdrawal batch. The locked tokens stop accruing reward contribution at
// the acting slot.
func (e *Engine) RequestWithdraw(ctx context.Context, user, targetMint solana.PublicKey, receiptTokenAmount uint64, slot uint64) (requestID, batchID uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fu := e.fundUser(user)
	// The request commits after the reward-side sync: check it first so a
	// settlement failure leaves both sides untouched.
	if err := e.cfg.Fund.CheckWithdrawalRequest(fu, targetMint, receiptTokenAmount); err != nil {
		return 0, 0, err
	}
	if err := e.removeAllocation(e.rewardUser(user), receiptTokenAmount, slot); err != nil {
		return 0, 0, err
	}
	requestID, batchID, err = e.cfg.Fund.RequestWithdrawal(fu, targetMint, receiptTokenAmount, e.cfg.Clock.Now().Unix())
	if err != nil {
		return 0, 0, err
	}

	e.cfg.Emitter.Emit(ctx, event.UserRequestedWithdrawalFromFund{
		User:               user,
		AssetMint:          targetMint,
		RequestID:          requestID,
		BatchID:            batchID,
		ReceiptTokenAmount: receiptTokenAmount,
	})
	return requestID, batchID, nil
}

// CancelWithdrawal unwinds a request whose batch has not been enqueued yet.
// The unlocked tokens resume accruing at the default rate; the original
// record rates are not restored.
func (e *Engine) CancelWithdrawal(ctx context.Context, user solana.PublicKey, requestID uint64, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fu := e.fundUser(user)
	ru := e.rewardUser(user)
	// Settle the reward side up front; the allocation add after the fund
	// mutation is then plain arithmetic.
	if err := e.syncAllocations(ru, slot); err != nil {
		return err
	}
	canceled, err := e.cfg.Fund.CancelWithdrawalRequest(fu, requestID)
	if err != nil {
		return err
	}
	if err := e.addAllocation(ru, canceled.ReceiptTokenAmount, reward.DefaultAccrualRate, slot); err != nil {
		return err
	}

	e.cfg.Emitter.Emit(ctx, event.UserCanceledWithdrawalRequestFromFund{
		User:               user,
		RequestID:          requestID,
		BatchID:            canceled.BatchID,
		ReceiptTokenAmount: canceled.ReceiptTokenAmount,
	})
	return nil
}

// Withdraw pays out the user's share of a processed batch, burning the
// locked receipt tokens.
func (e *Engine) Withdraw(ctx context.Context, user solana.PublicKey, requestID uint64) (withdrawn uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fu := e.fundUser(user)
	var batchID uint64
	for i := range fu.Requests {
		if fu.Requests[i].RequestID == requestID {
			batchID = fu.Requests[i].BatchID
		}
	}
	withdrawn, fee, burnt, targetMint, err := e.cfg.Fund.Withdraw(fu, requestID)
	if err != nil {
		return 0, err
	}

	e.cfg.Emitter.Emit(ctx, event.UserWithdrewFromFund{
		User:                    user,
		AssetMint:               targetMint,
		RequestID:               requestID,
		BatchID:                 batchID,
		BurntReceiptTokenAmount: burnt,
		WithdrawnAmount:         withdrawn,
		DeductedFeeAmount:       fee,
	})
	return withdrawn, nil
}
