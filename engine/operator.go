package engine

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/event"
	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
	"github.com/fragmetric-labs/fragmetric-engine/operation"
)

// RunCommand drives the operation pipeline one step. Operator only; a forced
// command additionally requires the pipeline's transition lock to be open.
func (e *Engine) RunCommand(ctx context.Context, authority solana.PublicKey, slot uint64, forced *operation.CommandKind) (*operation.StepOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isOperator(authority) {
		return nil, ErrUnauthorized
	}
	outcome, err := e.cfg.Pipeline.Step(ctx, slot, forced)
	if err != nil {
		return nil, err
	}
	e.cfg.Emitter.Emit(ctx, event.OperatorRanFundCommand{
		NextSequence: outcome.NextSequence,
		NumOperated:  outcome.NumOperated,
		Command:      outcome.Command.String(),
		Advanced:     outcome.Status == operation.StepAdvanced,
		Result:       outcome.Result,
	})
	return outcome, nil
}

// ForceResetCommand abandons an in-flight command past its expiration.
// Operator only.
func (e *Engine) ForceResetCommand(ctx context.Context, authority solana.PublicKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isOperator(authority) {
		return ErrUnauthorized
	}
	return e.cfg.Pipeline.ForceReset()
}

// UpdatePrices refreshes every cached asset price and the receipt token
// backing from live pricing sources. Operator only.
func (e *Engine) UpdatePrices(ctx context.Context, authority solana.PublicKey, price fundtypes.PriceFunc, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isOperator(authority) {
		return ErrUnauthorized
	}
	if err := e.cfg.Fund.UpdatePrices(price, slot); err != nil {
		return err
	}
	e.cfg.Emitter.Emit(ctx, event.OperatorUpdatedFundPrices{
		OneReceiptTokenAsSOL: e.cfg.Fund.OneReceiptTokenAsSOL,
		Slot:                 slot,
	})
	return nil
}
