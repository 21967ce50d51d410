package reward

import (
	"github.com/holiman/uint256"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

// SettlementBlock records a contribution-to-amount exchange ratio over one
// slot range: Amount reward units distributed over the pool contribution
// accrued in [StartingSlot, EndingSlot).
type SettlementBlock struct {
	Amount       uint64
	StartingSlot uint64
	EndingSlot   uint64

	StartingContribution uint256.Int
	EndingContribution   uint256.Int

	// Running totals of what users have reconciled out of this block.
	UserSettledAmount       uint64
	UserSettledContribution uint256.Int
}

func (b *SettlementBlock) contributionSpan() *uint256.Int {
	return new(uint256.Int).Sub(&b.EndingContribution, &b.StartingContribution)
}

// Settlement is the per-(reward, pool) ledger: the block ring plus amounts
// not yet representable as blocks.
type Settlement struct {
	RewardID uint8

	// RemainingAmount carries reward units awaiting a block: checkpoint
	// settlements over empty contribution ranges and leftovers folded
	// forward when a block is evicted from the full ring.
	RemainingAmount uint64

	ClaimedAmount      uint64
	ClaimedUpdatedSlot uint64

	// SettledAmount is the sum of amounts of blocks still in the ring.
	SettledAmount uint64

	Blocks []SettlementBlock
}

func (s *Settlement) appendBlock(pool *Pool, amount uint64, slot uint64) error {
	amount, err := fundtypes.CheckedAdd(amount, s.RemainingAmount)
	if err != nil {
		return err
	}
	s.RemainingAmount = 0

	startSlot := pool.InitialSlot
	start := new(uint256.Int)
	if n := len(s.Blocks); n > 0 {
		startSlot = s.Blocks[n-1].EndingSlot
		start.Set(&s.Blocks[n-1].EndingContribution)
	}
	if slot < startSlot {
		return ErrSlotRegression
	}
	if pool.Contribution.Eq(start) {
		// No contribution accrued over the range: nothing to attribute the
		// amount against, carry it to the next settlement.
		s.RemainingAmount = amount
		return nil
	}

	if len(s.Blocks) >= MaxSettlementBlock {
		if err := s.evictOldest(); err != nil {
			return err
		}
	}
	block := SettlementBlock{
		Amount:       amount,
		StartingSlot: startSlot,
		EndingSlot:   slot,
	}
	block.StartingContribution.Set(start)
	block.EndingContribution.Set(&pool.Contribution)
	s.Blocks = append(s.Blocks, block)
	s.SettledAmount, err = fundtypes.CheckedAdd(s.SettledAmount, amount)
	return err
}

// evictOldest drops the front block and folds its unclaimed leftover into
// RemainingAmount, so the next block re-distributes it. Users that never
// reconciled against the evicted block forfeit their share of it.
func (s *Settlement) evictOldest() error {
	oldest := s.Blocks[0]
	leftover, err := fundtypes.CheckedSub(oldest.Amount, oldest.UserSettledAmount)
	if err != nil {
		return err
	}
	s.RemainingAmount, err = fundtypes.CheckedAdd(s.RemainingAmount, leftover)
	if err != nil {
		return err
	}
	s.SettledAmount, err = fundtypes.CheckedSub(s.SettledAmount, oldest.Amount)
	if err != nil {
		return err
	}
	s.Blocks = append(s.Blocks[:0], s.Blocks[1:]...)
	return nil
}

// settleUserContribution attributes a user's contribution delta within one
// block and returns the user's share of the block amount, truncating in the
// pool's favor.
func (b *SettlementBlock) settleUserContribution(delta *uint256.Int) (uint64, error) {
	if delta.IsZero() {
		return 0, nil
	}
	span := b.contributionSpan()
	if span.IsZero() || delta.Gt(span) {
		return 0, fundtypes.ErrCalculationArithmetic
	}
	share := new(uint256.Int).Mul(uint256.NewInt(b.Amount), delta)
	share.Div(share, span)
	if !share.IsUint64() {
		return 0, fundtypes.ErrCalculationArithmetic
	}
	amount := share.Uint64()

	settled, err := fundtypes.CheckedAdd(b.UserSettledAmount, amount)
	if err != nil {
		return 0, err
	}
	if settled > b.Amount {
		return 0, ErrInvalidTotalUserSettledAmount
	}
	b.UserSettledAmount = settled
	if err := fundtypes.AccumulateU128(&b.UserSettledContribution, delta); err != nil {
		return 0, err
	}
	return amount, nil
}
