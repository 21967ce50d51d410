package reward

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

const (
	MaxUserPools       = 4
	MaxUserSettlements = 16
)

// UserSettlement is the user's reconciliation cursor against one reward's
// settlement blocks: SettledContribution/SettledSlot mark how far into the
// block sequence the user has been attributed.
type UserSettlement struct {
	RewardID            uint8
	SettledAmount       uint64
	SettledContribution uint256.Int
	SettledSlot         uint64
	ClaimedAmount       uint64
}

// UserPool mirrors one reward pool for a single user: the user's own
// allocation records, contribution accumulator and settlement cursors.
type UserPool struct {
	PoolID       uint8
	Allocated    TokenAllocatedAmount
	Contribution uint256.Int
	UpdatedSlot  uint64
	JoinedSlot   uint64
	Settlements  []UserSettlement
}

// UserAccount is the per-(fund, user) reward state.
type UserAccount struct {
	User     solana.PublicKey
	Delegate solana.PublicKey // zero when unset
	Pools    []UserPool
}

func NewUserAccount(user solana.PublicKey) *UserAccount {
	return &UserAccount{User: user}
}

// CanAct reports whether authority may mutate this account: the user
// themselves or their delegate.
func (u *UserAccount) CanAct(authority solana.PublicKey) bool {
	if authority.Equals(u.User) {
		return true
	}
	return !u.Delegate.IsZero() && authority.Equals(u.Delegate)
}

func (u *UserAccount) PoolFor(poolID uint8) *UserPool {
	for i := range u.Pools {
		if u.Pools[i].PoolID == poolID {
			return &u.Pools[i]
		}
	}
	return nil
}

// Join creates the user's mirror of a pool. Settlement cursors start at the
// end of each reward's existing block history: blocks from before the user
// joined carry none of their contribution.
func (u *UserAccount) Join(pool *Pool, slot uint64) (*UserPool, error) {
	if existing := u.PoolFor(pool.ID); existing != nil {
		return existing, nil
	}
	if len(u.Pools) >= MaxUserPools {
		return nil, ErrExceededMaxRewardPools
	}
	if pool.Closed() {
		return nil, ErrPoolClosed
	}
	up := UserPool{PoolID: pool.ID, UpdatedSlot: slot, JoinedSlot: slot}
	for i := range pool.Settlements {
		settlement := &pool.Settlements[i]
		cursor := UserSettlement{RewardID: settlement.RewardID}
		if n := len(settlement.Blocks); n > 0 {
			cursor.SettledSlot = settlement.Blocks[n-1].EndingSlot
		}
		up.Settlements = append(up.Settlements, cursor)
	}
	u.Pools = append(u.Pools, up)
	return &u.Pools[len(u.Pools)-1], nil
}

func (p *UserPool) settlementFor(rewardID uint8) *UserSettlement {
	for i := range p.Settlements {
		if p.Settlements[i].RewardID == rewardID {
			return &p.Settlements[i]
		}
	}
	return nil
}

// Sync accrues the user's contribution to the acting slot and reconciles
// every settlement block the user has not yet been attributed against. It
// must run before any mutation of the user's allocation in this pool; the
// reconciliation math relies on the allocation having been constant since
// the previous sync.
func (p *UserPool) Sync(pool *Pool, slot uint64) error {
	if err := pool.Accrue(slot); err != nil {
		return err
	}
	if slot < p.UpdatedSlot {
		return ErrSlotRegression
	}
	if err := p.Allocated.AccrueInto(&p.Contribution, p.UpdatedSlot, slot); err != nil {
		return err
	}
	p.UpdatedSlot = slot

	ratePerSlot := p.Allocated.RatePerSlot()
	for i := range pool.Settlements {
		settlement := &pool.Settlements[i]
		cursor := p.settlementFor(settlement.RewardID)
		if cursor == nil {
			if len(p.Settlements) >= MaxUserSettlements {
				return ErrExceededMaxSettlements
			}
			p.Settlements = append(p.Settlements, UserSettlement{RewardID: settlement.RewardID})
			cursor = &p.Settlements[len(p.Settlements)-1]
		}
		for j := range settlement.Blocks {
			block := &settlement.Blocks[j]
			if block.EndingSlot <= cursor.SettledSlot {
				continue
			}
			if cursor.SettledSlot < block.StartingSlot {
				// Everything before this block is gone from the ring; the
				// user forfeits whatever they had not reconciled out of it.
				// Advance the cursor to the contribution at the block start.
				sinceStart := new(uint256.Int).Mul(ratePerSlot, uint256.NewInt(slot-block.StartingSlot))
				startContribution := new(uint256.Int)
				if sinceStart.Lt(&p.Contribution) {
					startContribution.Sub(&p.Contribution, sinceStart)
				}
				if startContribution.Gt(&cursor.SettledContribution) {
					cursor.SettledContribution.Set(startContribution)
				}
				cursor.SettledSlot = block.StartingSlot
			}
			// The user's cumulative contribution at the block's ending slot:
			// current contribution minus what the (constant) allocation
			// accrues between that slot and now.
			sinceEnd := new(uint256.Int).Mul(ratePerSlot, uint256.NewInt(slot-block.EndingSlot))
			endContribution := new(uint256.Int).Sub(&p.Contribution, sinceEnd)
			if endContribution.Lt(&cursor.SettledContribution) {
				return fundtypes.ErrCalculationArithmetic
			}
			delta := new(uint256.Int).Sub(endContribution, &cursor.SettledContribution)
			amount, err := block.settleUserContribution(delta)
			if err != nil {
				return err
			}
			cursor.SettledAmount, err = fundtypes.CheckedAdd(cursor.SettledAmount, amount)
			if err != nil {
				return err
			}
			cursor.SettledContribution.Set(endContribution)
			cursor.SettledSlot = block.EndingSlot
		}
	}
	return nil
}

// Claim takes the user's unclaimed settled amount for one reward. Returns
// the claimed amount, which may be zero.
func (p *UserPool) Claim(pool *Pool, rewardID uint8, slot uint64) (uint64, error) {
	if err := p.Sync(pool, slot); err != nil {
		return 0, err
	}
	cursor := p.settlementFor(rewardID)
	if cursor == nil {
		return 0, ErrRewardNotFound
	}
	amount, err := fundtypes.CheckedSub(cursor.SettledAmount, cursor.ClaimedAmount)
	if err != nil {
		return 0, ErrInsufficientSettledAmount
	}
	cursor.ClaimedAmount = cursor.SettledAmount
	if settlement := pool.settlementFor(rewardID); settlement != nil {
		settlement.ClaimedAmount, err = fundtypes.CheckedAdd(settlement.ClaimedAmount, amount)
		if err != nil {
			return 0, err
		}
		settlement.ClaimedUpdatedSlot = slot
	}
	return amount, nil
}
