package engine

import (
	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

// syncAllocations joins the user into every open pool they are a member of
// and reconciles each one at the acting slot.
func (e *Engine) syncAllocations(ru *reward.UserAccount, slot uint64) error {
	for _, pool := range e.cfg.Reward.MemberPools(ru.User) {
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
	}
	return nil
}

// addAllocation grows the user's allocation in every open pool they are a
// member of, joining pools on first contact. Pools with a custom accrual
// rate apply customRate; everything else accrues at the default rate.
func (e *Engine) addAllocation(ru *reward.UserAccount, amount uint64, customRate uint16, slot uint64) error {
	for _, pool := range e.cfg.Reward.MemberPools(ru.User) {
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
		rate := reward.DefaultAccrualRate
		if pool.CustomAccrualRate {
			rate = customRate
		}
		if err := up.Allocated.Add(amount, rate); err != nil {
			return err
		}
		if err := pool.Allocated.Add(amount, rate); err != nil {
			return err
		}
	}
	return nil
}

// removeAllocation shrinks the user's allocation in every open pool,
// lowest-rate records first, mirroring each removed record into the pool
// aggregate. A pool the user joined after acquiring tokens may hold less
// than amount; the removal is capped at what the pool tracks.
func (e *Engine) removeAllocation(ru *reward.UserAccount, amount uint64, slot uint64) error {
	for _, pool := range e.cfg.Reward.MemberPools(ru.User) {
		if pool.Closed() {
			continue
		}
		up := ru.PoolFor(pool.ID)
		if up == nil {
			continue
		}
		if err := up.Sync(pool, slot); err != nil {
			return err
		}
		take := min(amount, up.Allocated.Total)
		if take == 0 {
			continue
		}
		breakdown, err := up.Allocated.Remove(take)
		if err != nil {
			return err
		}
		for _, record := range breakdown {
			if err := pool.Allocated.RemoveAt(record.Amount, record.AccrualRate); err != nil {
				return err
			}
		}
	}
	return nil
}

// moveAllocation shifts amount receipt tokens from src to dst pool by pool.
// Where both are members the removed records keep their accrual rates on the
// destination side; where only the destination is a member the tokens enter
// at the default rate.
func (e *Engine) moveAllocation(src, dst *reward.UserAccount, amount uint64, slot uint64) error {
	srcPools := poolIDSet(e.cfg.Reward.MemberPools(src.User))
	dstPools := poolIDSet(e.cfg.Reward.MemberPools(dst.User))

	for i := range e.cfg.Reward.Pools {
		pool := &e.cfg.Reward.Pools[i]
		if pool.Closed() {
			continue
		}
		srcMember := srcPools[pool.ID]
		dstMember := dstPools[pool.ID]
		if !srcMember && !dstMember {
			continue
		}

		var breakdown []reward.AllocationRecord
		if srcMember {
			if up := src.PoolFor(pool.ID); up != nil {
				if err := up.Sync(pool, slot); err != nil {
					return err
				}
				take := min(amount, up.Allocated.Total)
				if take > 0 {
					var err error
					breakdown, err = up.Allocated.Remove(take)
					if err != nil {
						return err
					}
					for _, record := range breakdown {
						if err := pool.Allocated.RemoveAt(record.Amount, record.AccrualRate); err != nil {
							return err
						}
					}
				}
			}
		}
		if !dstMember {
			continue
		}

		dp, err := dst.Join(pool, slot)
		if err != nil {
			return err
		}
		if err := dp.Sync(pool, slot); err != nil {
			return err
		}
		if len(breakdown) == 0 {
			breakdown = []reward.AllocationRecord{{Amount: amount, AccrualRate: reward.DefaultAccrualRate}}
		}
		for _, record := range breakdown {
			if err := dp.Allocated.Add(record.Amount, record.AccrualRate); err != nil {
				return err
			}
			if err := pool.Allocated.Add(record.Amount, record.AccrualRate); err != nil {
				return err
			}
		}
	}
	return nil
}

func poolIDSet(pools []*reward.Pool) map[uint8]bool {
	out := make(map[uint8]bool, len(pools))
	for _, p := range pools {
		out[p.ID] = true
	}
	return out
}
