package reward

import (
	"github.com/holiman/uint256"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

const (
	// MaxAllocationRecords bounds the distinct accrual rates one pool or user
	// can hold allocation at.
	MaxAllocationRecords = 10

	// DefaultAccrualRate is 1.00x. Rates carry two implied decimal digits.
	DefaultAccrualRate uint16 = 100
)

// AllocationRecord is one (amount, accrual rate) slice of an allocation.
type AllocationRecord struct {
	Amount      uint64
	AccrualRate uint16
}

// TokenAllocatedAmount tracks a holder's token allocation split across
// accrual-rate records. Total always equals the sum of record amounts.
type TokenAllocatedAmount struct {
	Total   uint64
	Records []AllocationRecord
}

// Add merges amount into the record with an equal rate, inserting a new
// record if none exists. When the record set is full, the record with the
// lowest accrual rate is evicted and its amount folded into the default-rate
// record if present, otherwise into the lowest-rate survivor. Folding never
// moves amount to a rate below the evicted record's rate bound set, so the
// blended rate stays within [min, max] of the merged records.
func (t *TokenAllocatedAmount) Add(amount uint64, rate uint16) error {
	if amount == 0 {
		return nil
	}
	total, err := fundtypes.CheckedAdd(t.Total, amount)
	if err != nil {
		return err
	}
	for i := range t.Records {
		if t.Records[i].AccrualRate == rate {
			t.Records[i].Amount, err = fundtypes.CheckedAdd(t.Records[i].Amount, amount)
			if err != nil {
				return err
			}
			t.Total = total
			return nil
		}
	}
	if len(t.Records) < MaxAllocationRecords {
		t.Records = append(t.Records, AllocationRecord{Amount: amount, AccrualRate: rate})
		t.Total = total
		return nil
	}

	victim := 0
	for i := range t.Records {
		if t.Records[i].AccrualRate < t.Records[victim].AccrualRate {
			victim = i
		}
	}
	evicted := t.Records[victim]
	t.Records[victim] = AllocationRecord{Amount: amount, AccrualRate: rate}
	fold := t.foldTargetIndex(victim)
	t.Records[fold].Amount, err = fundtypes.CheckedAdd(t.Records[fold].Amount, evicted.Amount)
	if err != nil {
		t.Records[victim] = evicted
		return err
	}
	t.Total = total
	return nil
}

// foldTargetIndex picks where an evicted record's amount lands: the
// default-rate record when one exists, else the lowest-rate record other
// than the freshly inserted one when possible.
func (t *TokenAllocatedAmount) foldTargetIndex(inserted int) int {
	for i := range t.Records {
		if t.Records[i].AccrualRate == DefaultAccrualRate {
			return i
		}
	}
	target := inserted
	for i := range t.Records {
		if i == inserted {
			continue
		}
		if target == inserted || t.Records[i].AccrualRate < t.Records[target].AccrualRate {
			target = i
		}
	}
	return target
}

// Remove takes amount out lowest-rate-first and returns the removed
// breakdown, so callers can mirror the exact (amount, rate) movement into an
// aggregate or a transfer destination. Contribution must have been accrued
// before calling.
func (t *TokenAllocatedAmount) Remove(amount uint64) ([]AllocationRecord, error) {
	if amount > t.Total {
		return nil, fundtypes.ErrCalculationArithmetic
	}
	var removed []AllocationRecord
	remaining := amount
	for remaining > 0 {
		lowest := -1
		for i := range t.Records {
			if t.Records[i].Amount == 0 {
				continue
			}
			if lowest < 0 || t.Records[i].AccrualRate < t.Records[lowest].AccrualRate {
				lowest = i
			}
		}
		if lowest < 0 {
			return nil, fundtypes.ErrCalculationArithmetic
		}
		take := min(remaining, t.Records[lowest].Amount)
		t.Records[lowest].Amount -= take
		remaining -= take
		removed = append(removed, AllocationRecord{Amount: take, AccrualRate: t.Records[lowest].AccrualRate})
	}
	t.Total -= amount
	t.compact()
	return removed, nil
}

// RemoveAt takes amount out of the record with exactly the given rate, used
// to mirror a member's breakdown into the pool aggregate.
func (t *TokenAllocatedAmount) RemoveAt(amount uint64, rate uint16) error {
	if amount == 0 {
		return nil
	}
	for i := range t.Records {
		if t.Records[i].AccrualRate != rate {
			continue
		}
		var err error
		t.Records[i].Amount, err = fundtypes.CheckedSub(t.Records[i].Amount, amount)
		if err != nil {
			return err
		}
		t.Total -= amount
		t.compact()
		return nil
	}
	return fundtypes.ErrCalculationArithmetic
}

func (t *TokenAllocatedAmount) compact() {
	kept := t.Records[:0]
	for _, record := range t.Records {
		if record.Amount > 0 {
			kept = append(kept, record)
		}
	}
	t.Records = kept
}

// RatePerSlot is the allocation's contribution velocity: the sum of
// amount*rate across records, accumulated per elapsed slot.
func (t *TokenAllocatedAmount) RatePerSlot() *uint256.Int {
	out := new(uint256.Int)
	for _, record := range t.Records {
		out.Add(out, fundtypes.U128FromParts(record.Amount, record.AccrualRate, 1))
	}
	return out
}

// AccrueInto adds amount*rate*(toSlot-fromSlot) per record into contribution.
func (t *TokenAllocatedAmount) AccrueInto(contribution *uint256.Int, fromSlot, toSlot uint64) error {
	if toSlot < fromSlot {
		return ErrSlotRegression
	}
	elapsed := toSlot - fromSlot
	if elapsed == 0 {
		return nil
	}
	for _, record := range t.Records {
		if err := fundtypes.AccumulateU128(contribution, fundtypes.U128FromParts(record.Amount, record.AccrualRate, elapsed)); err != nil {
			return err
		}
	}
	return nil
}
