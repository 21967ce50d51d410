package engine

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

// AddSupportedToken registers a deposit-eligible token. Fund manager only.
func (e *Engine) AddSupportedToken(ctx context.Context, authority solana.PublicKey, token fund.SupportedToken) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return ErrUnauthorized
	}
	return e.cfg.Fund.AddSupportedToken(token)
}

// AddRestakingVault registers an external vault the fund may delegate into.
// Fund manager only.
func (e *Engine) AddRestakingVault(ctx context.Context, authority solana.PublicKey, vault fund.RestakingVault) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return ErrUnauthorized
	}
	return e.cfg.Fund.AddRestakingVault(vault)
}

// FundStrategy carries the fund-level tunables. Nil fields keep the current
// value.
type FundStrategy struct {
	DepositEnabled  *bool
	WithdrawEnabled *bool
	DonationEnabled *bool
	TransferEnabled *bool

	WithdrawalFeeRateBps    *uint16
	RewardCommissionRateBps *uint16
	BatchThresholdSeconds   *int64
}

// UpdateFundStrategy applies the set fields of strategy. Fund manager only.
func (e *Engine) UpdateFundStrategy(ctx context.Context, authority solana.PublicKey, strategy FundStrategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return ErrUnauthorized
	}
	if err := checkBps(strategy.WithdrawalFeeRateBps, strategy.RewardCommissionRateBps); err != nil {
		return err
	}
	f := e.cfg.Fund
	if strategy.DepositEnabled != nil {
		f.DepositEnabled = *strategy.DepositEnabled
	}
	if strategy.WithdrawEnabled != nil {
		f.WithdrawEnabled = *strategy.WithdrawEnabled
	}
	if strategy.DonationEnabled != nil {
		f.DonationEnabled = *strategy.DonationEnabled
	}
	if strategy.TransferEnabled != nil {
		f.TransferEnabled = *strategy.TransferEnabled
	}
	if strategy.WithdrawalFeeRateBps != nil {
		f.WithdrawalFeeRateBps = *strategy.WithdrawalFeeRateBps
	}
	if strategy.RewardCommissionRateBps != nil {
		f.RewardCommissionRateBps = *strategy.RewardCommissionRateBps
	}
	if strategy.BatchThresholdSeconds != nil {
		f.BatchThresholdSeconds = *strategy.BatchThresholdSeconds
	}
	return nil
}

// AssetStrategy carries the per-asset tunables. Nil fields keep the current
// value.
type AssetStrategy struct {
	DepositCapacityAmount  *uint64
	NormalReserveRateBps   *uint16
	NormalReserveMaxAmount *uint64

	// SOLAllocationWeightBps and SOLAllocationCapacity apply to supported
	// tokens only.
	SOLAllocationWeightBps *uint16
	SOLAllocationCapacity  *uint64
}

// UpdateAssetStrategy applies the set fields of strategy to one asset, zero
// mint meaning SOL. Fund manager only.
func (e *Engine) UpdateAssetStrategy(ctx context.Context, authority, mint solana.PublicKey, strategy AssetStrategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return ErrUnauthorized
	}
	if err := checkBps(strategy.NormalReserveRateBps, strategy.SOLAllocationWeightBps); err != nil {
		return err
	}
	state, err := e.cfg.Fund.AssetStateFor(mint)
	if err != nil {
		return err
	}
	if strategy.DepositCapacityAmount != nil {
		state.DepositCapacityAmount = *strategy.DepositCapacityAmount
	}
	if strategy.NormalReserveRateBps != nil {
		state.NormalReserveRateBps = *strategy.NormalReserveRateBps
	}
	if strategy.NormalReserveMaxAmount != nil {
		state.NormalReserveMaxAmount = *strategy.NormalReserveMaxAmount
	}
	if !mint.IsZero() {
		token := e.cfg.Fund.SupportedTokenFor(mint)
		if strategy.SOLAllocationWeightBps != nil {
			token.SOLAllocationWeightBps = *strategy.SOLAllocationWeightBps
		}
		if strategy.SOLAllocationCapacity != nil {
			token.SOLAllocationCapacity = *strategy.SOLAllocationCapacity
		}
	}
	return nil
}

// checkBps rejects basis-point rates above 100%, which would underflow the
// fee and commission deductions downstream.
func checkBps(rates ...*uint16) error {
	for _, rate := range rates {
		if rate != nil && *rate > fundtypes.BpsDenominator {
			return ErrInvalidRate
		}
	}
	return nil
}

// AddRewardHolder registers a holder group and returns its id. Fund manager
// only.
func (e *Engine) AddRewardHolder(ctx context.Context, authority solana.PublicKey, name, description string, pubkeys []solana.PublicKey) (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return 0, ErrUnauthorized
	}
	holder, err := e.cfg.Reward.AddHolder(name, description, pubkeys)
	if err != nil {
		return 0, err
	}
	return holder.ID, nil
}

// AddReward registers a reward definition and returns its id. Fund manager
// only.
func (e *Engine) AddReward(ctx context.Context, authority solana.PublicKey, name, description string, kind reward.RewardKind, decimals uint8, mint, program solana.PublicKey) (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return 0, ErrUnauthorized
	}
	r, err := e.cfg.Reward.AddReward(name, description, kind, decimals, mint, program)
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}

// AddRewardPool creates a pool over a holder group and returns its id. Fund
// manager only.
func (e *Engine) AddRewardPool(ctx context.Context, authority solana.PublicKey, name string, holderID uint8, customAccrualRate bool, slot uint64) (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return 0, ErrUnauthorized
	}
	pool, err := e.cfg.Reward.AddPool(name, holderID, customAccrualRate, slot)
	if err != nil {
		return 0, err
	}
	return pool.ID, nil
}
