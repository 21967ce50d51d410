package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

func (p *Pipeline) prepare(ctx context.Context, kind CommandKind, now int64) ([]Item, error) {
	switch kind {
	case CommandInitialize:
		return nil, p.prepareInitialize()
	case CommandEnqueueWithdrawalBatch:
		return p.prepareEnqueueWithdrawalBatch(now)
	case CommandClaimUnrestakedVST:
		return p.prepareClaimTickets(fund.TicketKindUnrestakeVST, now)
	case CommandDenormalizeNT:
		return p.prepareDenormalizeNT()
	case CommandUndelegateVST:
		return p.prepareUndelegateVST()
	case CommandUnrestakeVRT:
		return p.prepareUnrestakeVRT()
	case CommandClaimUnstakedSOL:
		return p.prepareClaimTickets(fund.TicketKindUnstakeSOL, now)
	case CommandProcessWithdrawalBatch:
		return p.prepareProcessWithdrawalBatch()
	case CommandUnstakeLST:
		return p.prepareUnstakeLST()
	case CommandStakeSOL:
		return p.prepareStakeSOL()
	case CommandNormalizeST:
		return p.prepareNormalizeST()
	case CommandRestakeVST:
		return p.prepareRestakeVST()
	case CommandDelegateVST:
		return p.prepareDelegateVST()
	case CommandHarvestReward:
		return p.prepareHarvestReward()
	default:
		return nil, fmt.Errorf("%w: unknown command %d", ErrAccountComputation, kind)
	}
}

func (p *Pipeline) execute(ctx context.Context, kind CommandKind, items []Item, forced bool, now int64) (any, error) {
	switch kind {
	case CommandEnqueueWithdrawalBatch:
		return p.executeEnqueueWithdrawalBatch(items, forced, now)
	case CommandClaimUnrestakedVST:
		return p.executeClaimUnrestakedVST(ctx, items)
	case CommandDenormalizeNT:
		return p.executeDenormalizeNT(ctx, items)
	case CommandUndelegateVST:
		return p.executeUndelegateVST(ctx, items)
	case CommandUnrestakeVRT:
		return p.executeUnrestakeVRT(ctx, items, now)
	case CommandClaimUnstakedSOL:
		return p.executeClaimUnstakedSOL(ctx, items)
	case CommandProcessWithdrawalBatch:
		return p.executeProcessWithdrawalBatch(items, now)
	case CommandUnstakeLST:
		return p.executeUnstakeLST(ctx, items, now)
	case CommandStakeSOL:
		return p.executeStakeSOL(ctx, items)
	case CommandNormalizeST:
		return p.executeNormalizeST(ctx, items)
	case CommandRestakeVST:
		return p.executeRestakeVST(ctx, items)
	case CommandDelegateVST:
		return p.executeDelegateVST(ctx, items)
	case CommandHarvestReward:
		return p.executeHarvestReward(ctx, items)
	default:
		return nil, fmt.Errorf("%w: command %s has no executable items", ErrCommandExecutionFailed, kind)
	}
}

func (p *Pipeline) complete(kind CommandKind) (any, error) {
	if kind != CommandInitialize {
		return nil, nil
	}
	f := p.cfg.Fund
	total := f.SOL.ReserveAmount
	for i := range f.SupportedTokens {
		value, err := f.ValueForAssetUnits(f.SupportedTokens[i].Mint, f.SupportedTokens[i].State.ReserveAmount)
		if err != nil {
			return nil, err
		}
		total, err = fundtypes.CheckedAdd(total, value)
		if err != nil {
			return nil, err
		}
	}
	return &InitializeCommandResult{ReserveAsSOL: total, ReceiptTokenSupply: f.ReceiptTokenSupply}, nil
}

// assetMints lists SOL (zero key) followed by every supported token mint.
func (p *Pipeline) assetMints() []solana.PublicKey {
	mints := []solana.PublicKey{{}}
	for i := range p.cfg.Fund.SupportedTokens {
		mints = append(mints, p.cfg.Fund.SupportedTokens[i].Mint)
	}
	return mints
}

// queuedLiabilityInAssetUnits is the asset amount the queued withdrawal
// batches of one asset will need at the current price.
func (p *Pipeline) queuedLiabilityInAssetUnits(mint solana.PublicKey) (uint64, error) {
	f := p.cfg.Fund
	receiptTokens, err := f.QueuedWithdrawalLiability(mint)
	if err != nil {
		return 0, err
	}
	if receiptTokens == 0 {
		return 0, nil
	}
	value, err := f.AssetValueForReceiptTokens(receiptTokens)
	if err != nil {
		return 0, err
	}
	return f.AssetUnitsForValue(mint, value)
}

// assetShortfall is how much of an asset the reserve is missing to cover
// queued withdrawals, net of claims already in flight.
func (p *Pipeline) assetShortfall(mint solana.PublicKey) (uint64, error) {
	f := p.cfg.Fund
	liability, err := p.queuedLiabilityInAssetUnits(mint)
	if err != nil {
		return 0, err
	}
	state, err := f.AssetStateFor(mint)
	if err != nil {
		return 0, err
	}
	covered := state.ReserveAmount
	for i := range f.Tickets {
		if f.Tickets[i].Mint.Equals(mint) {
			covered += f.Tickets[i].Amount
		}
	}
	if covered >= liability {
		return 0, nil
	}
	return liability - covered, nil
}

func (p *Pipeline) prepareInitialize() error {
	f := p.cfg.Fund
	for _, mint := range p.assetMints() {
		state, err := f.AssetStateFor(mint)
		if err != nil {
			return err
		}
		if f.OneReceiptTokenAsSOL == 0 {
			state.WithdrawableValueAsReceiptToken = 0
			continue
		}
		value, err := f.ValueForAssetUnits(mint, state.ReserveAmount)
		if err != nil {
			return err
		}
		state.WithdrawableValueAsReceiptToken, err = f.ReceiptTokensForAssetValue(value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) prepareEnqueueWithdrawalBatch(now int64) ([]Item, error) {
	f := p.cfg.Fund
	var items []Item
	for _, mint := range p.assetMints() {
		state, err := f.AssetStateFor(mint)
		if err != nil {
			return nil, err
		}
		if state.Pending.BatchID == 0 || state.Pending.NumRequests == 0 {
			continue
		}
		if !p.State.Next.Forced && now-state.LastEnqueuedAt < f.BatchThresholdSeconds {
			continue
		}
		items = append(items, Item{Mint: mint})
	}
	return items, nil
}

func (p *Pipeline) executeEnqueueWithdrawalBatch(items []Item, forced bool, now int64) (any, error) {
	result := &EnqueueWithdrawalBatchCommandResult{}
	for _, item := range items {
		batch, err := p.cfg.Fund.EnqueueWithdrawalBatch(item.Mint, forced, now)
		if err != nil {
			if errors.Is(err, fund.ErrWithdrawalBatchQueueFull) || errors.Is(err, fund.ErrWithdrawalBatchNotEnqueuable) {
				continue
			}
			return nil, err
		}
		if batch == nil {
			continue
		}
		result.Enqueued = append(result.Enqueued, BatchMove{
			AssetMint:          item.Mint,
			BatchID:            batch.BatchID,
			NumRequests:        batch.NumRequests,
			ReceiptTokenAmount: batch.ReceiptTokenAmount,
		})
	}
	return result, nil
}

func (p *Pipeline) prepareClaimTickets(kind fund.TicketKind, now int64) ([]Item, error) {
	var items []Item
	for i := range p.cfg.Fund.Tickets {
		ticket := &p.cfg.Fund.Tickets[i]
		if ticket.Kind != kind || ticket.ClaimableAt > now {
			continue
		}
		items = append(items, Item{TicketID: ticket.ID, Mint: ticket.Mint, Amount: ticket.Amount})
	}
	return items, nil
}

func (p *Pipeline) executeClaimUnrestakedVST(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &ClaimUnrestakedVSTCommandResult{}
	for _, item := range items {
		vstOut, err := p.cfg.Restaking.ClaimUnrestaked(ctx, item.TicketID)
		if err != nil {
			return nil, fmt.Errorf("%w: claim unrestaked ticket %d: %v", ErrCommandExecutionFailed, item.TicketID, err)
		}
		state, err := f.AssetStateFor(item.Mint)
		if err != nil {
			return nil, err
		}
		state.ReserveAmount, err = fundtypes.CheckedAdd(state.ReserveAmount, vstOut)
		if err != nil {
			return nil, err
		}
		f.RemoveTicket(item.TicketID)
		result.Claimed = append(result.Claimed, ClaimedTicket{TicketID: item.TicketID, Mint: item.Mint, Amount: vstOut})
	}
	return result, nil
}

func (p *Pipeline) executeClaimUnstakedSOL(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &ClaimUnstakedSOLCommandResult{}
	for _, item := range items {
		ticket := f.TicketByID(item.TicketID)
		if ticket == nil {
			continue
		}
		sourceMint := ticket.SourceMint
		lamports, err := p.cfg.Staking.ClaimUnstaked(ctx, item.TicketID)
		if err != nil {
			return nil, fmt.Errorf("%w: claim unstaked ticket %d: %v", ErrCommandExecutionFailed, item.TicketID, err)
		}
		f.SOL.ReserveAmount, err = fundtypes.CheckedAdd(f.SOL.ReserveAmount, lamports)
		if err != nil {
			return nil, err
		}
		if token := f.SupportedTokenFor(sourceMint); token != nil {
			token.PendingUnstakingAsSOL, err = fundtypes.CheckedSub(token.PendingUnstakingAsSOL, item.Amount)
			if err != nil {
				return nil, err
			}
		}
		f.RemoveTicket(item.TicketID)
		result.Claimed = append(result.Claimed, ClaimedTicket{TicketID: item.TicketID, Amount: lamports})
	}
	return result, nil
}

func (p *Pipeline) prepareDenormalizeNT() ([]Item, error) {
	f := p.cfg.Fund
	if !f.NormalizedToken.Enabled || p.cfg.Normalizer == nil {
		return nil, nil
	}
	var items []Item
	remaining := f.NormalizedToken.Supply
	for _, mint := range f.NormalizedToken.ConstituentMints {
		if remaining == 0 {
			break
		}
		shortfall, err := p.assetShortfall(mint)
		if err != nil {
			return nil, err
		}
		if shortfall == 0 {
			continue
		}
		amount := min(shortfall, remaining)
		remaining -= amount
		items = append(items, Item{Mint: mint, Amount: amount})
	}
	return items, nil
}

func (p *Pipeline) executeDenormalizeNT(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &DenormalizeNTCommandResult{}
	for _, item := range items {
		assetOut, err := p.cfg.Normalizer.Denormalize(ctx, item.Mint, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: denormalize %s: %v", ErrCommandExecutionFailed, item.Mint, err)
		}
		state, err := f.AssetStateFor(item.Mint)
		if err != nil {
			return nil, err
		}
		state.ReserveAmount, err = fundtypes.CheckedAdd(state.ReserveAmount, assetOut)
		if err != nil {
			return nil, err
		}
		f.NormalizedToken.Supply, err = fundtypes.CheckedSub(f.NormalizedToken.Supply, item.Amount)
		if err != nil {
			return nil, err
		}
		result.Denormalized = append(result.Denormalized, StakeMove{Mint: item.Mint, AmountIn: item.Amount, AmountOut: assetOut})
	}
	return result, nil
}

func (p *Pipeline) prepareUndelegateVST() ([]Item, error) {
	f := p.cfg.Fund
	var items []Item
	for i := range f.RestakingVaults {
		vault := &f.RestakingVaults[i]
		shortfall, err := p.assetShortfall(vault.UnderlyingMint)
		if err != nil {
			return nil, err
		}
		undelegated := vault.ReceiptBalance - vault.DelegatedAmount
		if shortfall <= undelegated {
			continue
		}
		needed := shortfall - undelegated
		for j := range vault.Delegations {
			if needed == 0 {
				break
			}
			delegation := &vault.Delegations[j]
			if delegation.Amount == 0 {
				continue
			}
			amount := min(needed, delegation.Amount)
			needed -= amount
			items = append(items, Item{Vault: vault.Vault, Operator: delegation.Operator, Amount: amount})
		}
	}
	return items, nil
}

func (p *Pipeline) executeUndelegateVST(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &UndelegateVSTCommandResult{}
	for _, item := range items {
		if err := p.cfg.Restaking.Undelegate(ctx, item.Vault, item.Operator, item.Amount); err != nil {
			return nil, fmt.Errorf("%w: undelegate from %s: %v", ErrCommandExecutionFailed, item.Vault, err)
		}
		vault := vaultFor(f, item.Vault)
		if vault == nil {
			return nil, fund.ErrRestakingVaultNotFound
		}
		var err error
		vault.DelegatedAmount, err = fundtypes.CheckedSub(vault.DelegatedAmount, item.Amount)
		if err != nil {
			return nil, err
		}
		for j := range vault.Delegations {
			if vault.Delegations[j].Operator.Equals(item.Operator) {
				vault.Delegations[j].Amount -= item.Amount
				break
			}
		}
		result.Undelegated = append(result.Undelegated, DelegationMove{Vault: item.Vault, Operator: item.Operator, Amount: item.Amount})
	}
	return result, nil
}

func (p *Pipeline) prepareUnrestakeVRT() ([]Item, error) {
	f := p.cfg.Fund
	var items []Item
	for i := range f.RestakingVaults {
		vault := &f.RestakingVaults[i]
		shortfall, err := p.assetShortfall(vault.UnderlyingMint)
		if err != nil {
			return nil, err
		}
		if shortfall == 0 {
			continue
		}
		undelegated := vault.ReceiptBalance - vault.DelegatedAmount
		amount := min(shortfall, undelegated)
		if amount == 0 {
			continue
		}
		items = append(items, Item{Vault: vault.Vault, Mint: vault.UnderlyingMint, Amount: amount})
	}
	return items, nil
}

func (p *Pipeline) executeUnrestakeVRT(ctx context.Context, items []Item, now int64) (any, error) {
	f := p.cfg.Fund
	result := &UnrestakeVRTCommandResult{}
	for _, item := range items {
		expectedVST, err := p.cfg.Restaking.Unrestake(ctx, item.Vault, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: unrestake from %s: %v", ErrCommandExecutionFailed, item.Vault, err)
		}
		vault := vaultFor(f, item.Vault)
		if vault == nil {
			return nil, fund.ErrRestakingVaultNotFound
		}
		vault.ReceiptBalance, err = fundtypes.CheckedSub(vault.ReceiptBalance, item.Amount)
		if err != nil {
			return nil, err
		}
		f.NewTicket(fund.TicketKindUnrestakeVST, item.Mint, vault.Vault, expectedVST, now, now+p.cfg.CooldownSeconds)
		result.Unrestaked = append(result.Unrestaked, VaultMove{Vault: item.Vault, AmountIn: item.Amount, AmountOut: expectedVST})
	}
	return result, nil
}

func (p *Pipeline) prepareProcessWithdrawalBatch() ([]Item, error) {
	f := p.cfg.Fund
	var items []Item
	for _, mint := range p.assetMints() {
		state, err := f.AssetStateFor(mint)
		if err != nil {
			return nil, err
		}
		for range state.Queued {
			items = append(items, Item{Mint: mint})
		}
	}
	return items, nil
}

func (p *Pipeline) executeProcessWithdrawalBatch(items []Item, now int64) (any, error) {
	result := &ProcessWithdrawalBatchCommandResult{}
	for _, item := range items {
		record, err := p.cfg.Fund.ProcessWithdrawalBatch(item.Mint, now)
		if err != nil {
			if errors.Is(err, fund.ErrInsufficientReserve) {
				// The reserve cannot cover the oldest batch yet; the next
				// cycle's unstake/claim steps replenish it.
				continue
			}
			return nil, err
		}
		if record == nil {
			continue
		}
		result.Processed = append(result.Processed, ProcessedBatch{
			AssetMint:          item.Mint,
			BatchID:            record.BatchID,
			ReceiptTokenAmount: record.RequestedReceiptTokenAmount,
			AssetUserAmount:    record.AssetUserAmount,
			AssetFeeAmount:     record.AssetFeeAmount,
		})
	}
	return result, nil
}

func (p *Pipeline) prepareUnstakeLST() ([]Item, error) {
	f := p.cfg.Fund
	shortfall, err := p.assetShortfall(solana.PublicKey{})
	if err != nil {
		return nil, err
	}
	if shortfall == 0 {
		return nil, nil
	}
	var items []Item
	for i := range f.SupportedTokens {
		if shortfall == 0 {
			break
		}
		token := &f.SupportedTokens[i]
		if token.State.ReserveAmount == 0 || token.OneTokenAsSOL == 0 {
			continue
		}
		reserveAsSOL, err := f.ValueForAssetUnits(token.Mint, token.State.ReserveAmount)
		if err != nil {
			return nil, err
		}
		take := min(shortfall, reserveAsSOL)
		lstAmount, err := f.AssetUnitsForValue(token.Mint, take)
		if err != nil {
			return nil, err
		}
		if lstAmount == 0 {
			continue
		}
		shortfall -= take
		items = append(items, Item{Mint: token.Mint, Amount: lstAmount})
	}
	return items, nil
}

func (p *Pipeline) executeUnstakeLST(ctx context.Context, items []Item, now int64) (any, error) {
	f := p.cfg.Fund
	result := &UnstakeLSTCommandResult{}
	for _, item := range items {
		expectedSOL, err := p.cfg.Staking.Unstake(ctx, item.Mint, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: unstake %s: %v", ErrCommandExecutionFailed, item.Mint, err)
		}
		token := f.SupportedTokenFor(item.Mint)
		if token == nil {
			return nil, fund.ErrSupportedTokenNotFound
		}
		token.State.ReserveAmount, err = fundtypes.CheckedSub(token.State.ReserveAmount, item.Amount)
		if err != nil {
			return nil, err
		}
		token.PendingUnstakingAsSOL, err = fundtypes.CheckedAdd(token.PendingUnstakingAsSOL, expectedSOL)
		if err != nil {
			return nil, err
		}
		f.NewTicket(fund.TicketKindUnstakeSOL, solana.PublicKey{}, item.Mint, expectedSOL, now, now+p.cfg.CooldownSeconds)
		result.Unstaked = append(result.Unstaked, StakeMove{Mint: item.Mint, AmountIn: item.Amount, AmountOut: expectedSOL})
	}
	return result, nil
}

func (p *Pipeline) prepareStakeSOL() ([]Item, error) {
	f := p.cfg.Fund
	liability, err := p.queuedLiabilityInAssetUnits(solana.PublicKey{})
	if err != nil {
		return nil, err
	}
	target, err := f.SOL.NormalReserveTarget(f.SOL.ReserveAmount)
	if err != nil {
		return nil, err
	}
	keep, err := fundtypes.CheckedAdd(liability, target)
	if err != nil {
		return nil, err
	}
	if f.SOL.ReserveAmount <= keep {
		return nil, nil
	}
	excess := f.SOL.ReserveAmount - keep
	var items []Item
	for i := range f.SupportedTokens {
		token := &f.SupportedTokens[i]
		if token.SOLAllocationWeightBps == 0 {
			continue
		}
		portion, err := fundtypes.MulBps(excess, token.SOLAllocationWeightBps)
		if err != nil {
			return nil, err
		}
		if token.SOLAllocationCapacity > 0 {
			deployed, err := f.ValueForAssetUnits(token.Mint, token.State.ReserveAmount)
			if err != nil {
				return nil, err
			}
			if deployed >= token.SOLAllocationCapacity {
				continue
			}
			portion = min(portion, token.SOLAllocationCapacity-deployed)
		}
		if portion == 0 {
			continue
		}
		items = append(items, Item{Mint: token.Mint, Amount: portion})
	}
	return items, nil
}

func (p *Pipeline) executeStakeSOL(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &StakeSOLCommandResult{}
	for _, item := range items {
		lstOut, err := p.cfg.Staking.Stake(ctx, item.Mint, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: stake into %s: %v", ErrCommandExecutionFailed, item.Mint, err)
		}
		f.SOL.ReserveAmount, err = fundtypes.CheckedSub(f.SOL.ReserveAmount, item.Amount)
		if err != nil {
			return nil, err
		}
		token := f.SupportedTokenFor(item.Mint)
		if token == nil {
			return nil, fund.ErrSupportedTokenNotFound
		}
		token.State.ReserveAmount, err = fundtypes.CheckedAdd(token.State.ReserveAmount, lstOut)
		if err != nil {
			return nil, err
		}
		result.Staked = append(result.Staked, StakeMove{Mint: item.Mint, AmountIn: item.Amount, AmountOut: lstOut})
	}
	return result, nil
}

func (p *Pipeline) prepareNormalizeST() ([]Item, error) {
	f := p.cfg.Fund
	if !f.NormalizedToken.Enabled || p.cfg.Normalizer == nil {
		return nil, nil
	}
	var items []Item
	for _, mint := range f.NormalizedToken.ConstituentMints {
		token := f.SupportedTokenFor(mint)
		if token == nil {
			continue
		}
		liability, err := p.queuedLiabilityInAssetUnits(mint)
		if err != nil {
			return nil, err
		}
		target, err := token.State.NormalReserveTarget(token.State.ReserveAmount)
		if err != nil {
			return nil, err
		}
		keep, err := fundtypes.CheckedAdd(liability, target)
		if err != nil {
			return nil, err
		}
		if token.State.ReserveAmount <= keep {
			continue
		}
		items = append(items, Item{Mint: mint, Amount: token.State.ReserveAmount - keep})
	}
	return items, nil
}

func (p *Pipeline) executeNormalizeST(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &NormalizeSTCommandResult{}
	for _, item := range items {
		ntOut, err := p.cfg.Normalizer.Normalize(ctx, item.Mint, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: normalize %s: %v", ErrCommandExecutionFailed, item.Mint, err)
		}
		state, err := f.AssetStateFor(item.Mint)
		if err != nil {
			return nil, err
		}
		state.ReserveAmount, err = fundtypes.CheckedSub(state.ReserveAmount, item.Amount)
		if err != nil {
			return nil, err
		}
		f.NormalizedToken.Supply, err = fundtypes.CheckedAdd(f.NormalizedToken.Supply, ntOut)
		if err != nil {
			return nil, err
		}
		result.Normalized = append(result.Normalized, StakeMove{Mint: item.Mint, AmountIn: item.Amount, AmountOut: ntOut})
	}
	return result, nil
}

func (p *Pipeline) prepareRestakeVST() ([]Item, error) {
	f := p.cfg.Fund
	var items []Item
	for i := range f.RestakingVaults {
		vault := &f.RestakingVaults[i]
		token := f.SupportedTokenFor(vault.UnderlyingMint)
		if token == nil {
			continue
		}
		liability, err := p.queuedLiabilityInAssetUnits(vault.UnderlyingMint)
		if err != nil {
			return nil, err
		}
		target, err := token.State.NormalReserveTarget(token.State.ReserveAmount)
		if err != nil {
			return nil, err
		}
		keep, err := fundtypes.CheckedAdd(liability, target)
		if err != nil {
			return nil, err
		}
		if token.State.ReserveAmount <= keep {
			continue
		}
		amount := token.State.ReserveAmount - keep
		if vault.Capacity > 0 {
			if vault.ReceiptBalance >= vault.Capacity {
				continue
			}
			amount = min(amount, vault.Capacity-vault.ReceiptBalance)
		}
		if amount == 0 {
			continue
		}
		items = append(items, Item{Vault: vault.Vault, Mint: vault.UnderlyingMint, Amount: amount})
	}
	return items, nil
}

func (p *Pipeline) executeRestakeVST(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &RestakeVSTCommandResult{}
	for _, item := range items {
		vrtOut, err := p.cfg.Restaking.Restake(ctx, item.Vault, item.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: restake into %s: %v", ErrCommandExecutionFailed, item.Vault, err)
		}
		token := f.SupportedTokenFor(item.Mint)
		if token == nil {
			return nil, fund.ErrSupportedTokenNotFound
		}
		token.State.ReserveAmount, err = fundtypes.CheckedSub(token.State.ReserveAmount, item.Amount)
		if err != nil {
			return nil, err
		}
		vault := vaultFor(f, item.Vault)
		if vault == nil {
			return nil, fund.ErrRestakingVaultNotFound
		}
		vault.ReceiptBalance, err = fundtypes.CheckedAdd(vault.ReceiptBalance, vrtOut)
		if err != nil {
			return nil, err
		}
		result.Restaked = append(result.Restaked, VaultMove{Vault: item.Vault, AmountIn: item.Amount, AmountOut: vrtOut})
	}
	return result, nil
}

func (p *Pipeline) prepareDelegateVST() ([]Item, error) {
	f := p.cfg.Fund
	var items []Item
	for i := range f.RestakingVaults {
		vault := &f.RestakingVaults[i]
		undelegated := vault.ReceiptBalance - vault.DelegatedAmount
		if undelegated == 0 || len(vault.Delegations) == 0 {
			continue
		}
		share := undelegated / uint64(len(vault.Delegations))
		remainder := undelegated % uint64(len(vault.Delegations))
		for j := range vault.Delegations {
			amount := share
			if j == 0 {
				amount += remainder
			}
			if amount == 0 {
				continue
			}
			items = append(items, Item{Vault: vault.Vault, Operator: vault.Delegations[j].Operator, Amount: amount})
		}
	}
	return items, nil
}

func (p *Pipeline) executeDelegateVST(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &DelegateVSTCommandResult{}
	for _, item := range items {
		if err := p.cfg.Restaking.Delegate(ctx, item.Vault, item.Operator, item.Amount); err != nil {
			return nil, fmt.Errorf("%w: delegate to %s: %v", ErrCommandExecutionFailed, item.Operator, err)
		}
		vault := vaultFor(f, item.Vault)
		if vault == nil {
			return nil, fund.ErrRestakingVaultNotFound
		}
		var err error
		vault.DelegatedAmount, err = fundtypes.CheckedAdd(vault.DelegatedAmount, item.Amount)
		if err != nil {
			return nil, err
		}
		for j := range vault.Delegations {
			if vault.Delegations[j].Operator.Equals(item.Operator) {
				vault.Delegations[j].Amount += item.Amount
				break
			}
		}
		result.Delegated = append(result.Delegated, DelegationMove{Vault: item.Vault, Operator: item.Operator, Amount: item.Amount})
	}
	return result, nil
}

func (p *Pipeline) prepareHarvestReward() ([]Item, error) {
	f := p.cfg.Fund
	var items []Item
	for i := range f.RestakingVaults {
		vault := &f.RestakingVaults[i]
		for _, rewardMint := range vault.CompoundingRewardMints {
			items = append(items, Item{Vault: vault.Vault, Mint: rewardMint})
		}
	}
	return items, nil
}

func (p *Pipeline) executeHarvestReward(ctx context.Context, items []Item) (any, error) {
	f := p.cfg.Fund
	result := &HarvestRewardCommandResult{}
	for _, item := range items {
		vault := vaultFor(f, item.Vault)
		if vault == nil {
			return nil, fund.ErrRestakingVaultNotFound
		}
		harvested, err := p.cfg.Restaking.Harvest(ctx, item.Vault, item.Mint)
		if err != nil {
			return nil, fmt.Errorf("%w: harvest %s from %s: %v", ErrCommandExecutionFailed, item.Mint, item.Vault, err)
		}
		if harvested == 0 {
			continue
		}
		swappedOut, err := p.cfg.Swap.Swap(ctx, item.Mint, vault.UnderlyingMint, harvested)
		if err != nil {
			return nil, fmt.Errorf("%w: swap harvested %s: %v", ErrCommandExecutionFailed, item.Mint, err)
		}
		commission, err := fundtypes.MulBps(swappedOut, f.RewardCommissionRateBps)
		if err != nil {
			return nil, err
		}
		compounded := swappedOut - commission
		commissionAsSOL, err := f.ValueForAssetUnits(vault.UnderlyingMint, commission)
		if err != nil {
			return nil, err
		}
		token := f.SupportedTokenFor(vault.UnderlyingMint)
		if token == nil {
			return nil, fund.ErrSupportedTokenNotFound
		}
		token.State.ReserveAmount, err = fundtypes.CheckedAdd(token.State.ReserveAmount, compounded)
		if err != nil {
			return nil, err
		}
		f.ProgramRevenue, err = fundtypes.CheckedAdd(f.ProgramRevenue, commissionAsSOL)
		if err != nil {
			return nil, err
		}
		result.Harvested = append(result.Harvested, HarvestedReward{
			Vault:            item.Vault,
			RewardMint:       item.Mint,
			HarvestedAmount:  harvested,
			SwappedOutAmount: swappedOut,
			CommissionAsSOL:  commissionAsSOL,
			CompoundedAmount: compounded,
		})
	}
	return result, nil
}

func vaultFor(f *fund.Account, vault solana.PublicKey) *fund.RestakingVault {
	for i := range f.RestakingVaults {
		if f.RestakingVaults[i].Vault.Equals(vault) {
			return &f.RestakingVaults[i]
		}
	}
	return nil
}
