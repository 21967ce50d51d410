package reward

import (
	"github.com/gagliardetto/solana-go"
)

type RewardKind uint8

const (
	RewardKindPoint RewardKind = 0
	RewardKindToken RewardKind = 1
	RewardKindSOL   RewardKind = 2
)

func (k RewardKind) String() string {
	switch k {
	case RewardKindPoint:
		return "point"
	case RewardKindToken:
		return "token"
	case RewardKindSOL:
		return "sol"
	default:
		return "unknown"
	}
}

// Reward is one distributable reward definition.
type Reward struct {
	ID          uint8
	Name        string
	Description string
	Kind        RewardKind
	Decimals    uint8
	Mint        solana.PublicKey // token rewards only
	Program     solana.PublicKey
}

// Holder groups the pubkeys a pool draws its token allocation from. A holder
// with no pubkeys is the base holder: every user is a member.
type Holder struct {
	ID          uint8
	Name        string
	Description string
	Pubkeys     []solana.PublicKey
}

func (h *Holder) Contains(user solana.PublicKey) bool {
	if len(h.Pubkeys) == 0 {
		return true
	}
	for _, pk := range h.Pubkeys {
		if pk.Equals(user) {
			return true
		}
	}
	return false
}

// Account is the reward registry for one receipt token: holders, rewards and
// pools with uniqueness and configured-capacity enforcement.
type Account struct {
	ReceiptTokenMint solana.PublicKey

	// Capacities fixed at creation, each bounded by the package maximum.
	MaxHolders uint8
	MaxRewards uint8
	MaxPools   uint8

	// WrapAccount is the shared holder key wrapped receipt tokens are
	// attributed to, so the base pool total is conserved across wraps.
	WrapAccount solana.PublicKey

	Holders []Holder
	Rewards []Reward
	Pools   []Pool
}

func NewAccount(receiptTokenMint, wrapAccount solana.PublicKey) *Account {
	return &Account{
		ReceiptTokenMint: receiptTokenMint,
		MaxHolders:       MaxHolders,
		MaxRewards:       MaxRewards,
		MaxPools:         MaxPools,
		WrapAccount:      wrapAccount,
	}
}

func (a *Account) AddHolder(name, description string, pubkeys []solana.PublicKey) (*Holder, error) {
	if len(a.Holders) >= int(a.MaxHolders) {
		return nil, ErrExceededMaxHolders
	}
	if len(pubkeys) > MaxHolderPubkeys {
		return nil, ErrExceededMaxHolderPubkeys
	}
	for i := range a.Holders {
		if a.Holders[i].Name == name {
			return nil, ErrAlreadyExistingHolder
		}
	}
	a.Holders = append(a.Holders, Holder{
		ID:          uint8(len(a.Holders)),
		Name:        name,
		Description: description,
		Pubkeys:     pubkeys,
	})
	return &a.Holders[len(a.Holders)-1], nil
}

func (a *Account) AddReward(name, description string, kind RewardKind, decimals uint8, mint, program solana.PublicKey) (*Reward, error) {
	if len(a.Rewards) >= int(a.MaxRewards) {
		return nil, ErrExceededMaxRewards
	}
	for i := range a.Rewards {
		if a.Rewards[i].Name == name {
			return nil, ErrAlreadyExistingReward
		}
	}
	a.Rewards = append(a.Rewards, Reward{
		ID:          uint8(len(a.Rewards)),
		Name:        name,
		Description: description,
		Kind:        kind,
		Decimals:    decimals,
		Mint:        mint,
		Program:     program,
	})
	return &a.Rewards[len(a.Rewards)-1], nil
}

func (a *Account) AddPool(name string, holderID uint8, customAccrualRate bool, slot uint64) (*Pool, error) {
	if len(a.Pools) >= int(a.MaxPools) {
		return nil, ErrExceededMaxRewardPools
	}
	if a.holderByID(holderID) == nil {
		return nil, ErrHolderNotFound
	}
	for i := range a.Pools {
		if a.Pools[i].Name == name {
			return nil, ErrAlreadyExistingPool
		}
	}
	a.Pools = append(a.Pools, Pool{
		ID:                uint8(len(a.Pools)),
		Name:              name,
		HolderID:          holderID,
		CustomAccrualRate: customAccrualRate,
		InitialSlot:       slot,
		UpdatedSlot:       slot,
	})
	return &a.Pools[len(a.Pools)-1], nil
}

// ClosePool marks a pool closed once nothing remains outstanding: every
// settlement's blocks fully reconciled and no remainder carried.
func (a *Account) ClosePool(id uint8, slot uint64) error {
	pool := a.PoolByID(id)
	if pool == nil {
		return ErrPoolNotFound
	}
	if pool.Closed() {
		return ErrPoolClosed
	}
	if err := pool.Accrue(slot); err != nil {
		return err
	}
	for i := range pool.Settlements {
		settlement := &pool.Settlements[i]
		if settlement.RemainingAmount != 0 {
			return ErrPoolCloseCondition
		}
		for j := range settlement.Blocks {
			if settlement.Blocks[j].UserSettledAmount != settlement.Blocks[j].Amount {
				return ErrPoolCloseCondition
			}
		}
	}
	pool.ClosedSlot = slot
	return nil
}

// SettleReward distributes amount reward units against the contribution the
// pool accrued since its previous settlement of that reward.
func (a *Account) SettleReward(poolID, rewardID uint8, amount uint64, slot uint64) error {
	pool := a.PoolByID(poolID)
	if pool == nil {
		return ErrPoolNotFound
	}
	if a.RewardByID(rewardID) == nil {
		return ErrRewardNotFound
	}
	return pool.Settle(rewardID, amount, slot)
}

func (a *Account) PoolByID(id uint8) *Pool {
	for i := range a.Pools {
		if a.Pools[i].ID == id {
			return &a.Pools[i]
		}
	}
	return nil
}

func (a *Account) RewardByID(id uint8) *Reward {
	for i := range a.Rewards {
		if a.Rewards[i].ID == id {
			return &a.Rewards[i]
		}
	}
	return nil
}

func (a *Account) holderByID(id uint8) *Holder {
	for i := range a.Holders {
		if a.Holders[i].ID == id {
			return &a.Holders[i]
		}
	}
	return nil
}

// MemberPools lists the open pools whose holder includes the given user.
func (a *Account) MemberPools(user solana.PublicKey) []*Pool {
	var pools []*Pool
	for i := range a.Pools {
		pool := &a.Pools[i]
		if pool.Closed() {
			continue
		}
		holder := a.holderByID(pool.HolderID)
		if holder != nil && holder.Contains(user) {
			pools = append(pools, pool)
		}
	}
	return pools
}
