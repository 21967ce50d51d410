package engine

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/event"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

// SettleRewardPool distributes amount reward units against the contribution
// a pool accrued since its previous settlement. Fund manager only.
func (e *Engine) SettleRewardPool(ctx context.Context, authority solana.PublicKey, poolID, rewardID uint8, amount uint64, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return ErrUnauthorized
	}
	if err := e.cfg.Reward.SettleReward(poolID, rewardID, amount, slot); err != nil {
		return err
	}
	e.cfg.Emitter.Emit(ctx, event.FundManagerUpdatedRewardPool{
		PoolID:   poolID,
		RewardID: rewardID,
		Amount:   amount,
		Slot:     slot,
	})
	return nil
}

// UpdateUserPools joins the user into every pool they are a member of and
// syncs each one to the acting slot, materializing any settled reward share.
// Callable by the user or their delegate.
func (e *Engine) UpdateUserPools(ctx context.Context, authority, user solana.PublicKey, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ru := e.rewardUser(user)
	if !ru.CanAct(authority) {
		return reward.ErrInvalidPoolAccess
	}
	var poolIDs []uint8
	for _, pool := range e.cfg.Reward.MemberPools(user) {
		if pool.Closed() {
			continue
		}
		up, err := ru.Join(pool, slot)
		if err != nil {
			return err
		}
		if err := up.Sync(pool, slot); err != nil {
			return err
		}
		poolIDs = append(poolIDs, pool.ID)
	}
	e.cfg.Emitter.Emit(ctx, event.UserUpdatedRewardPool{User: user, Pools: poolIDs, Slot: slot})
	return nil
}

// ClaimReward takes the user's unclaimed settled amount for one reward in
// one pool. Callable by the user or their delegate.
func (e *Engine) ClaimReward(ctx context.Context, authority, user solana.PublicKey, poolID, rewardID uint8, slot uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ru := e.rewardUser(user)
	if !ru.CanAct(authority) {
		return 0, reward.ErrInvalidPoolAccess
	}
	pool := e.cfg.Reward.PoolByID(poolID)
	if pool == nil {
		return 0, reward.ErrPoolNotFound
	}
	up := ru.PoolFor(poolID)
	if up == nil {
		return 0, reward.ErrPoolNotFound
	}
	amount, err := up.Claim(pool, rewardID, slot)
	if err != nil {
		return 0, err
	}
	e.cfg.Emitter.Emit(ctx, event.UserClaimedReward{
		User:     user,
		PoolID:   poolID,
		RewardID: rewardID,
		Amount:   amount,
		Slot:     slot,
	})
	return amount, nil
}

// DelegateRewardAccount lets user hand pool maintenance to a delegate. A
// zero delegate clears the delegation.
func (e *Engine) DelegateRewardAccount(ctx context.Context, user, delegate solana.PublicKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ru := e.rewardUser(user)
	ru.Delegate = delegate
	e.cfg.Emitter.Emit(ctx, event.UserDelegatedRewardAccount{User: user, Delegate: delegate})
	return nil
}

// CloseRewardPool marks a pool closed once every settlement is fully
// reconciled. Fund manager only.
func (e *Engine) CloseRewardPool(ctx context.Context, authority solana.PublicKey, poolID uint8, slot uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isFundManager(authority) {
		return ErrUnauthorized
	}
	return e.cfg.Reward.ClosePool(poolID, slot)
}
