package engine

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/event"
	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

// Transfer moves receipt tokens between users. Both sides are synced at the
// acting slot before the allocation moves, so contribution accrued by the
// sender up to this slot stays with the sender.
func (e *Engine) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transferLocked(from, to, amount, slot); err != nil {
		return err
	}
	e.cfg.Emitter.Emit(ctx, event.UserTransferredReceiptToken{
		From:   from,
		To:     to,
		Amount: amount,
		Slot:   slot,
	})
	return nil
}

// Wrap moves receipt tokens into the wrap account's custody. The base pool
// total is conserved: the wrap account keeps accruing on the wrapped tokens
// at their carried rates.
func (e *Engine) Wrap(ctx context.Context, user solana.PublicKey, amount uint64, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transferLocked(user, e.cfg.Reward.WrapAccount, amount, slot); err != nil {
		return err
	}
	e.cfg.Emitter.Emit(ctx, event.UserWrappedReceiptToken{User: user, Amount: amount, Slot: slot})
	return nil
}

// Unwrap releases receipt tokens from the wrap account back to the user.
func (e *Engine) Unwrap(ctx context.Context, user solana.PublicKey, amount uint64, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transferLocked(e.cfg.Reward.WrapAccount, user, amount, slot); err != nil {
		return err
	}
	e.cfg.Emitter.Emit(ctx, event.UserUnwrappedReceiptToken{User: user, Amount: amount, Slot: slot})
	return nil
}

func (e *Engine) transferLocked(from, to solana.PublicKey, amount uint64, slot uint64) error {
	f := e.cfg.Fund
	if !f.TransferEnabled {
		return fund.ErrTransferDisabled
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	src := e.fundUser(from)
	dst := e.fundUser(to)
	free, err := fundtypes.CheckedSub(src.ReceiptTokenAmount, src.LockedReceiptTokenAmount)
	if err != nil || amount > free {
		return fund.ErrInsufficientBalance
	}
	if _, err := fundtypes.CheckedAdd(dst.ReceiptTokenAmount, amount); err != nil {
		return err
	}

	if err := e.moveAllocation(e.rewardUser(from), e.rewardUser(to), amount, slot); err != nil {
		return err
	}
	src.ReceiptTokenAmount -= amount
	dst.ReceiptTokenAmount += amount
	return nil
}
