package reward

import (
	"github.com/holiman/uint256"
)

const (
	MaxPools           = 4
	MaxRewards         = 16
	MaxHolders         = 4
	MaxHolderPubkeys   = 8
	MaxSettlements     = 16
	MaxSettlementBlock = 64
)

// Pool is one reward pool: an aggregate allocation over its member holders
// plus the monotonic contribution accumulator and per-reward settlements.
type Pool struct {
	ID                uint8
	Name              string
	HolderID          uint8
	CustomAccrualRate bool

	Allocated    TokenAllocatedAmount
	Contribution uint256.Int

	InitialSlot uint64
	UpdatedSlot uint64
	ClosedSlot  uint64 // zero while open

	Settlements []Settlement
}

func (p *Pool) Closed() bool { return p.ClosedSlot != 0 }

// Accrue folds elapsed slots into the pool contribution. Calling at the
// current UpdatedSlot is a no-op; a slot behind UpdatedSlot is a regression
// fault. Every read of Contribution and every allocation mutation must be
// preceded by an Accrue at the acting slot.
func (p *Pool) Accrue(slot uint64) error {
	if slot == p.UpdatedSlot {
		return nil
	}
	if slot < p.UpdatedSlot {
		return ErrSlotRegression
	}
	if err := p.Allocated.AccrueInto(&p.Contribution, p.UpdatedSlot, slot); err != nil {
		return err
	}
	p.UpdatedSlot = slot
	return nil
}

func (p *Pool) settlementFor(rewardID uint8) *Settlement {
	for i := range p.Settlements {
		if p.Settlements[i].RewardID == rewardID {
			return &p.Settlements[i]
		}
	}
	return nil
}

// Settle converts contribution accrued since the previous settlement of the
// given reward into a claimable block holding amount reward units. A zero
// amount is a valid checkpoint. When no contribution accrued over the range,
// the amount is carried in RemainingAmount instead of an unclaimable block.
func (p *Pool) Settle(rewardID uint8, amount uint64, slot uint64) error {
	if p.Closed() {
		return ErrPoolClosed
	}
	if err := p.Accrue(slot); err != nil {
		return err
	}
	settlement := p.settlementFor(rewardID)
	if settlement == nil {
		if len(p.Settlements) >= MaxSettlements {
			return ErrExceededMaxSettlements
		}
		p.Settlements = append(p.Settlements, Settlement{RewardID: rewardID})
		settlement = &p.Settlements[len(p.Settlements)-1]
	}
	return settlement.appendBlock(p, amount, slot)
}
