package reward_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

// allocate mirrors how callers mutate allocations: sync the user first, then
// apply the same record to both the user and the pool aggregate.
func allocate(t *testing.T, pool *reward.Pool, up *reward.UserPool, amount uint64, rate uint16, slot uint64) {
	t.Helper()
	require.NoError(t, up.Sync(pool, slot))
	require.NoError(t, up.Allocated.Add(amount, rate))
	require.NoError(t, pool.Allocated.Add(amount, rate))
}

func TestReward_UserPool_Sync(t *testing.T) {
	t.Parallel()

	t.Run("settles proportional shares", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		alice := reward.NewUserAccount(testPubkey(1))
		bob := reward.NewUserAccount(testPubkey(2))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		bobUP, err := bob.Join(pool, 0)
		require.NoError(t, err)
		allocate(t, pool, aliceUP, 1000, 100, 0)
		allocate(t, pool, bobUP, 3000, 100, 0)

		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 400, 10))

		require.NoError(t, aliceUP.Sync(pool, 10))
		require.NoError(t, bobUP.Sync(pool, 10))
		require.Equal(t, uint64(100), aliceUP.Settlements[0].SettledAmount)
		require.Equal(t, uint64(300), bobUP.Settlements[0].SettledAmount)

		block := pool.Settlements[0].Blocks[0]
		require.Equal(t, uint64(400), block.UserSettledAmount)
	})

	t.Run("late sync reconciles at the block boundary", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		alice := reward.NewUserAccount(testPubkey(1))
		bob := reward.NewUserAccount(testPubkey(2))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		bobUP, err := bob.Join(pool, 0)
		require.NoError(t, err)
		allocate(t, pool, aliceUP, 1000, 100, 0)
		allocate(t, pool, bobUP, 3000, 100, 0)

		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 400, 10))

		// Syncing after the block ended must attribute only the contribution
		// accrued up to the block boundary.
		require.NoError(t, aliceUP.Sync(pool, 15))
		require.Equal(t, uint64(100), aliceUP.Settlements[0].SettledAmount)

		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 500, 20))
		require.NoError(t, aliceUP.Sync(pool, 25))
		require.Equal(t, uint64(225), aliceUP.Settlements[0].SettledAmount)
		require.NoError(t, bobUP.Sync(pool, 25))
		require.Equal(t, uint64(675), bobUP.Settlements[0].SettledAmount)
	})

	t.Run("allocation change between blocks shifts shares", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		alice := reward.NewUserAccount(testPubkey(1))
		bob := reward.NewUserAccount(testPubkey(2))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		bobUP, err := bob.Join(pool, 0)
		require.NoError(t, err)
		allocate(t, pool, aliceUP, 1000, 100, 0)
		allocate(t, pool, bobUP, 3000, 100, 0)

		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 400, 10))

		// Alice doubles her allocation at slot 10; the sync inside allocate
		// reconciles her against the first block before the mutation.
		allocate(t, pool, aliceUP, 1000, 100, 10)
		require.Equal(t, uint64(100), aliceUP.Settlements[0].SettledAmount)

		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 500, 20))
		require.NoError(t, aliceUP.Sync(pool, 20))
		require.NoError(t, bobUP.Sync(pool, 20))
		// Second block span is 5000 tokens over 10 slots; alice carries 2000
		// of them.
		require.Equal(t, uint64(100+200), aliceUP.Settlements[0].SettledAmount)
		require.Equal(t, uint64(300+300), bobUP.Settlements[0].SettledAmount)
	})

	t.Run("truncation never over-distributes", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		users := make([]*reward.UserPool, 3)
		for i := range users {
			ua := reward.NewUserAccount(testPubkey(byte(10 + i)))
			up, err := ua.Join(pool, 0)
			require.NoError(t, err)
			allocate(t, pool, up, 1, 100, 0)
			users[i] = up
		}

		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 10, 10))
		var settled uint64
		for _, up := range users {
			require.NoError(t, up.Sync(pool, 10))
			settled += up.Settlements[0].SettledAmount
		}
		// 10 units over three equal holders: each truncates to 3.
		require.Equal(t, uint64(9), settled)
		require.LessOrEqual(t, settled, pool.Settlements[0].Blocks[0].Amount)
	})

	t.Run("joining after a block yields nothing from it", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		alice := reward.NewUserAccount(testPubkey(1))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		allocate(t, pool, aliceUP, 1000, 100, 0)
		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 400, 10))

		bob := reward.NewUserAccount(testPubkey(2))
		bobUP, err := bob.Join(pool, 10)
		require.NoError(t, err)
		require.Equal(t, uint64(10), bobUP.Settlements[0].SettledSlot)
		allocate(t, pool, bobUP, 1000, 100, 10)

		require.NoError(t, bobUP.Sync(pool, 15))
		require.Zero(t, bobUP.Settlements[0].SettledAmount)

		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 300, 20))
		require.NoError(t, aliceUP.Sync(pool, 20))
		require.NoError(t, bobUP.Sync(pool, 20))
		require.Equal(t, uint64(550), aliceUP.Settlements[0].SettledAmount)
		require.Equal(t, uint64(150), bobUP.Settlements[0].SettledAmount)
	})

	t.Run("forfeits evicted settlement blocks", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		alice := reward.NewUserAccount(testPubkey(1))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		allocate(t, pool, aliceUP, 1000, 100, 0)

		// One more settlement than the ring holds: the oldest block is
		// evicted before alice ever reconciles it.
		slot := uint64(0)
		for range reward.MaxSettlementBlock + 1 {
			slot += 10
			require.NoError(t, account.SettleReward(pool.ID, rw.ID, 100, slot))
		}
		require.Len(t, pool.Settlements[0].Blocks, reward.MaxSettlementBlock)

		require.NoError(t, aliceUP.Sync(pool, slot+1))
		// Alice settles every surviving block; the evicted block's amount
		// was folded into the remainder, not lost to the pool.
		require.Equal(t, uint64(100*reward.MaxSettlementBlock), aliceUP.Settlements[0].SettledAmount)
		require.Equal(t, uint64(100), pool.Settlements[0].RemainingAmount)

		// Once reconciled, later syncs settle nothing extra.
		require.NoError(t, aliceUP.Sync(pool, slot+2))
		require.Equal(t, uint64(100*reward.MaxSettlementBlock), aliceUP.Settlements[0].SettledAmount)
	})

	t.Run("rejects joining a closed pool", func(t *testing.T) {
		t.Parallel()
		account, pool, _ := newTestAccount(t)
		require.NoError(t, account.ClosePool(pool.ID, 5))

		alice := reward.NewUserAccount(testPubkey(1))
		_, err := alice.Join(pool, 5)
		require.ErrorIs(t, err, reward.ErrPoolClosed)
	})
}

func TestReward_UserPool_Claim(t *testing.T) {
	t.Parallel()

	t.Run("claims settled amount once", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		alice := reward.NewUserAccount(testPubkey(1))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		allocate(t, pool, aliceUP, 1000, 100, 0)
		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 400, 10))

		amount, err := aliceUP.Claim(pool, rw.ID, 10)
		require.NoError(t, err)
		require.Equal(t, uint64(400), amount)
		require.Equal(t, uint64(400), pool.Settlements[0].ClaimedAmount)

		amount, err = aliceUP.Claim(pool, rw.ID, 10)
		require.NoError(t, err)
		require.Zero(t, amount)
		require.Equal(t, uint64(400), pool.Settlements[0].ClaimedAmount)
	})

	t.Run("unknown reward", func(t *testing.T) {
		t.Parallel()
		_, pool, _ := newTestAccount(t)
		alice := reward.NewUserAccount(testPubkey(1))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		_, err = aliceUP.Claim(pool, 9, 0)
		require.ErrorIs(t, err, reward.ErrRewardNotFound)
	})
}

func TestReward_UserAccount_CanAct(t *testing.T) {
	t.Parallel()

	ua := reward.NewUserAccount(testPubkey(1))
	require.True(t, ua.CanAct(testPubkey(1)))
	require.False(t, ua.CanAct(testPubkey(2)))

	ua.Delegate = testPubkey(2)
	require.True(t, ua.CanAct(testPubkey(2)))
	require.False(t, ua.CanAct(testPubkey(3)))
}

func TestReward_Account_ClosePool(t *testing.T) {
	t.Parallel()

	t.Run("requires full user reconciliation", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)

		alice := reward.NewUserAccount(testPubkey(1))
		aliceUP, err := alice.Join(pool, 0)
		require.NoError(t, err)
		allocate(t, pool, aliceUP, 1000, 100, 0)
		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 400, 10))

		require.ErrorIs(t, account.ClosePool(pool.ID, 10), reward.ErrPoolCloseCondition)

		require.NoError(t, aliceUP.Sync(pool, 10))
		require.NoError(t, account.ClosePool(pool.ID, 10))
		require.True(t, pool.Closed())
	})

	t.Run("requires no carried remainder", func(t *testing.T) {
		t.Parallel()
		account, pool, rw := newTestAccount(t)
		// No allocation: the settled amount has nothing to attach to and
		// stays in the remainder.
		require.NoError(t, account.SettleReward(pool.ID, rw.ID, 400, 10))
		require.ErrorIs(t, account.ClosePool(pool.ID, 10), reward.ErrPoolCloseCondition)
	})
}
