package engine

import (
	"bytes"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
	"github.com/fragmetric-labs/fragmetric-engine/store"
)

// Snapshot captures the full engine state for persistence. User accounts
// are ordered by pubkey so identical states snapshot byte-identically.
func (e *Engine) Snapshot() *store.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := store.NewSnapshot()
	snap.Fund = *e.cfg.Fund
	snap.Reward = *e.cfg.Reward
	snap.Operation = e.cfg.Pipeline.State

	for _, u := range e.fundUsers {
		snap.FundUsers = append(snap.FundUsers, *u)
	}
	sort.Slice(snap.FundUsers, func(i, j int) bool {
		return bytes.Compare(snap.FundUsers[i].User[:], snap.FundUsers[j].User[:]) < 0
	})
	for _, u := range e.rewardUsers {
		snap.RewardUsers = append(snap.RewardUsers, *u)
	}
	sort.Slice(snap.RewardUsers, func(i, j int) bool {
		return bytes.Compare(snap.RewardUsers[i].User[:], snap.RewardUsers[j].User[:]) < 0
	})
	return snap
}

// Restore replaces the engine state with a snapshot's.
func (e *Engine) Restore(snap *store.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	*e.cfg.Fund = snap.Fund
	*e.cfg.Reward = snap.Reward
	e.cfg.Pipeline.State = snap.Operation

	e.fundUsers = make(map[solana.PublicKey]*fund.UserAccount, len(snap.FundUsers))
	for i := range snap.FundUsers {
		u := snap.FundUsers[i]
		e.fundUsers[u.User] = &u
	}
	e.rewardUsers = make(map[solana.PublicKey]*reward.UserAccount, len(snap.RewardUsers))
	for i := range snap.RewardUsers {
		u := snap.RewardUsers[i]
		e.rewardUsers[u.User] = &u
	}
}
