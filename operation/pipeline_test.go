package operation_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
	"github.com/fragmetric-labs/fragmetric-engine/opclient"
	"github.com/fragmetric-labs/fragmetric-engine/operation"
)

func testPubkey(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	pk[31] = 1
	return pk
}

// newOperableFund holds 10000 receipt base units backed 1:1 by lamports:
// 1000 lamports liquid plus 9000 token base units priced at one SOL per
// whole token.
func newOperableFund(t *testing.T) *fund.Account {
	t.Helper()
	f := fund.NewAccount(testPubkey(0xf0), solana.TokenProgramID, 9)
	require.NoError(t, f.AddSupportedToken(fund.SupportedToken{
		Mint:     testPubkey(0x10),
		Program:  solana.TokenProgramID,
		Decimals: 9,
	}))
	require.NoError(t, f.Mint(10_000))
	f.OneReceiptTokenAsSOL = 1_000_000_000
	f.SOL.ReserveAmount = 1_000
	token := f.SupportedTokenFor(testPubkey(0x10))
	token.OneTokenAsSOL = 1_000_000_000
	token.State.ReserveAmount = 9_000
	return f
}

func newTestPipeline(t *testing.T, f *fund.Account, clock clockwork.Clock, maxItems int) *operation.Pipeline {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim, err := opclient.NewSimulator(opclient.SimulatorConfig{Logger: log, Fund: f})
	require.NoError(t, err)
	p, err := operation.New(operation.Config{
		Logger:          log,
		Clock:           clock,
		Fund:            f,
		Staking:         sim,
		Restaking:       sim,
		Swap:            sim,
		Normalizer:      sim,
		MaxItemsPerStep: maxItems,
		CooldownSeconds: 50,
	})
	require.NoError(t, err)
	return p
}

// runCycle steps the pipeline until the harvest command completes, i.e. one
// full pass over the command cycle.
func runCycle(t *testing.T, p *operation.Pipeline, slot uint64) {
	t.Helper()
	for i := 0; i < 100; i++ {
		outcome, err := p.Step(context.Background(), slot, nil)
		require.NoError(t, err)
		if outcome.Status == operation.StepAdvanced && outcome.Command == operation.CommandHarvestReward {
			return
		}
	}
	t.Fatal("cycle did not complete")
}

func TestOperation_ConfigValidate(t *testing.T) {
	t.Parallel()

	f := newOperableFund(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim, err := opclient.NewSimulator(opclient.SimulatorConfig{Logger: log, Fund: f})
	require.NoError(t, err)

	_, err = operation.New(operation.Config{Fund: f, Staking: sim, Restaking: sim, Swap: sim})
	require.Error(t, err)

	p, err := operation.New(operation.Config{Logger: log, Fund: f, Staking: sim, Restaking: sim, Swap: sim})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestOperation_Step_CycleProgression(t *testing.T) {
	t.Parallel()

	f := newOperableFund(t)
	p := newTestPipeline(t, f, clockwork.NewFakeClock(), 0)

	// Initialize prepares on the first step and completes on the second.
	outcome, err := p.Step(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Equal(t, operation.StepInProgress, outcome.Status)
	require.Equal(t, operation.CommandInitialize, outcome.Command)
	require.Equal(t, operation.PhaseNew, outcome.Phase)

	outcome, err = p.Step(context.Background(), 2, nil)
	require.NoError(t, err)
	require.Equal(t, operation.StepAdvanced, outcome.Status)
	result, ok := outcome.Result.(*operation.InitializeCommandResult)
	require.True(t, ok)
	require.Equal(t, uint64(10_000), result.ReserveAsSOL)
	require.Equal(t, uint64(10_000), result.ReceiptTokenSupply)
	require.Equal(t, operation.CommandEnqueueWithdrawalBatch, outcome.NextCommand)
	require.Equal(t, uint16(1), outcome.NextSequence)
	require.Equal(t, uint64(1), outcome.NumOperated)

	runCycle(t, p, 3)
	require.Equal(t, operation.CommandInitialize, p.State.Next.Command)
	require.Equal(t, uint64(14), p.State.NumOperated)
	require.Equal(t, uint16(14), p.State.NextSequence)
}

func TestOperation_Step_ForcedCommand(t *testing.T) {
	t.Parallel()

	t.Run("rejected while transitions are enforced", func(t *testing.T) {
		t.Parallel()
		f := newOperableFund(t)
		p := newTestPipeline(t, f, clockwork.NewFakeClock(), 0)

		forced := operation.CommandHarvestReward
		_, err := p.Step(context.Background(), 1, &forced)
		require.ErrorIs(t, err, operation.ErrUnauthorizedCommand)
		require.Equal(t, operation.CommandInitialize, p.State.Next.Command)
	})

	t.Run("overrides the cursor when permitted", func(t *testing.T) {
		t.Parallel()
		f := newOperableFund(t)
		p := newTestPipeline(t, f, clockwork.NewFakeClock(), 0)
		p.State.NoTransition = true

		forced := operation.CommandHarvestReward
		outcome, err := p.Step(context.Background(), 1, &forced)
		require.NoError(t, err)
		require.Equal(t, operation.CommandHarvestReward, outcome.Command)
		require.True(t, p.State.Next.Forced)
	})
}

func TestOperation_Step_ItemChunking(t *testing.T) {
	t.Parallel()

	f := newOperableFund(t)
	require.NoError(t, f.AddRestakingVault(fund.RestakingVault{
		Vault:          testPubkey(0x20),
		ReceiptMint:    testPubkey(0x21),
		UnderlyingMint: testPubkey(0x10),
		ReceiptBalance: 100,
		Delegations: []fund.OperatorDelegation{
			{Operator: testPubkey(0x31)},
			{Operator: testPubkey(0x32)},
			{Operator: testPubkey(0x33)},
			{Operator: testPubkey(0x34)},
			{Operator: testPubkey(0x35)},
		},
	}))
	p := newTestPipeline(t, f, clockwork.NewFakeClock(), 2)
	p.State.NoTransition = true

	forced := operation.CommandDelegateVST
	outcome, err := p.Step(context.Background(), 1, &forced)
	require.NoError(t, err)
	require.Equal(t, operation.StepInProgress, outcome.Status)
	require.Len(t, p.State.Next.Items, 5)
	require.Len(t, p.State.Next.RequiredAccounts, 6) // vault + five operators

	statuses := []operation.StepStatus{}
	for i := 0; i < 3; i++ {
		outcome, err = p.Step(context.Background(), uint64(2+i), nil)
		require.NoError(t, err)
		statuses = append(statuses, outcome.Status)
	}
	require.Equal(t, []operation.StepStatus{
		operation.StepInProgress,
		operation.StepInProgress,
		operation.StepAdvanced,
	}, statuses)

	vault := &f.RestakingVaults[0]
	require.Equal(t, uint64(100), vault.DelegatedAmount)
	require.Equal(t, uint64(20), vault.Delegations[1].Amount)
}

func TestOperation_ForceReset(t *testing.T) {
	t.Parallel()

	f := newOperableFund(t)
	clock := clockwork.NewFakeClock()
	p := newTestPipeline(t, f, clock, 0)

	require.ErrorIs(t, p.ForceReset(), operation.ErrCommandNotExpired)

	_, err := p.Step(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Equal(t, operation.PhaseExecute, p.State.Next.Phase)

	require.ErrorIs(t, p.ForceReset(), operation.ErrCommandNotExpired)

	clock.Advance(time.Duration(operation.CommandExpirationSeconds+1) * time.Second)
	require.NoError(t, p.ForceReset())
	require.Equal(t, operation.PhaseNew, p.State.Next.Phase)
	require.Equal(t, operation.CommandInitialize, p.State.Next.Command)
}

func TestOperation_HarvestRewardCommission(t *testing.T) {
	t.Parallel()

	f := newOperableFund(t)
	f.RewardCommissionRateBps = 1_000
	rewardMint := testPubkey(0x40)
	require.NoError(t, f.AddRestakingVault(fund.RestakingVault{
		Vault:                  testPubkey(0x20),
		ReceiptMint:            testPubkey(0x21),
		UnderlyingMint:         testPubkey(0x10),
		CompoundingRewardMints: []solana.PublicKey{rewardMint},
	}))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim, err := opclient.NewSimulator(opclient.SimulatorConfig{
		Logger:    log,
		Fund:      f,
		SwapRates: map[solana.PublicKey]uint64{rewardMint: 500_000_000},
	})
	require.NoError(t, err)
	p, err := operation.New(operation.Config{
		Logger:    log,
		Clock:     clockwork.NewFakeClock(),
		Fund:      f,
		Staking:   sim,
		Restaking: sim,
		Swap:      sim,
	})
	require.NoError(t, err)
	p.State.NoTransition = true
	sim.SetRewardBalance(testPubkey(0x20), rewardMint, 1_000)

	forced := operation.CommandHarvestReward
	outcome, err := p.Step(context.Background(), 1, &forced)
	require.NoError(t, err)
	require.Equal(t, operation.StepInProgress, outcome.Status)
	outcome, err = p.Step(context.Background(), 2, nil)
	require.NoError(t, err)
	require.Equal(t, operation.StepAdvanced, outcome.Status)

	// 1000 reward units at half a SOL each swap into 500 LST base units;
	// a 10% commission books 50 lamports of revenue and compounds the rest.
	result, ok := outcome.Result.(*operation.HarvestRewardCommandResult)
	require.True(t, ok)
	require.Len(t, result.Harvested, 1)
	require.Equal(t, uint64(1_000), result.Harvested[0].HarvestedAmount)
	require.Equal(t, uint64(500), result.Harvested[0].SwappedOutAmount)
	require.Equal(t, uint64(50), result.Harvested[0].CommissionAsSOL)
	require.Equal(t, uint64(450), result.Harvested[0].CompoundedAmount)
	require.Equal(t, uint64(50), f.ProgramRevenue)
	require.Equal(t, uint64(9_450), f.SupportedTokenFor(testPubkey(0x10)).State.ReserveAmount)

	// The simulator balance drains on harvest: a second pass books nothing.
	forced = operation.CommandHarvestReward
	_, err = p.Step(context.Background(), 3, &forced)
	require.NoError(t, err)
	outcome, err = p.Step(context.Background(), 4, nil)
	require.NoError(t, err)
	require.Equal(t, operation.StepAdvanced, outcome.Status)
	require.Equal(t, uint64(50), f.ProgramRevenue)
	require.Equal(t, uint64(9_450), f.SupportedTokenFor(testPubkey(0x10)).State.ReserveAmount)
}

func TestOperation_ClaimUnstakedSOLPendingUnderflow(t *testing.T) {
	t.Parallel()

	f := newOperableFund(t)
	clock := clockwork.NewFakeClock()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sim, err := opclient.NewSimulator(opclient.SimulatorConfig{Logger: log, Fund: f})
	require.NoError(t, err)
	p, err := operation.New(operation.Config{
		Logger:    log,
		Clock:     clock,
		Fund:      f,
		Staking:   sim,
		Restaking: sim,
		Swap:      sim,
	})
	require.NoError(t, err)
	p.State.NoTransition = true

	// A matured ticket whose pending-unstaking counter no longer covers it
	// fails the claim instead of silently clamping the counter.
	_, err = sim.Unstake(context.Background(), testPubkey(0x10), 4_000)
	require.NoError(t, err)
	now := clock.Now().Unix()
	f.NewTicket(fund.TicketKindUnstakeSOL, solana.PublicKey{}, testPubkey(0x10), 4_000, now, now)
	f.SupportedTokenFor(testPubkey(0x10)).PendingUnstakingAsSOL = 100

	forced := operation.CommandClaimUnstakedSOL
	_, err = p.Step(context.Background(), 1, &forced)
	require.NoError(t, err)
	_, err = p.Step(context.Background(), 2, nil)
	require.ErrorIs(t, err, fundtypes.ErrCalculationArithmetic)
}

func TestOperation_WithdrawalServicingCycle(t *testing.T) {
	t.Parallel()

	f := newOperableFund(t)
	clock := clockwork.NewFakeClock()
	p := newTestPipeline(t, f, clock, 0)

	user := fund.NewUserAccount(testPubkey(1))
	user.ReceiptTokenAmount = 5_000
	requestID, _, err := f.RequestWithdrawal(user, solana.PublicKey{}, 5_000, clock.Now().Unix())
	require.NoError(t, err)
	_, err = f.EnqueueWithdrawalBatch(solana.PublicKey{}, true, clock.Now().Unix())
	require.NoError(t, err)

	// First cycle: the reserve cannot cover the batch, so the pipeline
	// unstakes the missing 4000 lamports worth of LST into a ticket.
	runCycle(t, p, 10)
	require.Len(t, f.SOL.Queued, 1)
	require.Len(t, f.Tickets, 1)
	require.Equal(t, uint64(4_000), f.Tickets[0].Amount)
	require.Equal(t, uint64(5_000), f.SupportedTokenFor(testPubkey(0x10)).State.ReserveAmount)
	require.Equal(t, uint64(4_000), f.SupportedTokenFor(testPubkey(0x10)).PendingUnstakingAsSOL)

	// Second cycle, after the cooldown: the ticket is claimed and the batch
	// processes out of the replenished reserve.
	clock.Advance(60 * time.Second)
	runCycle(t, p, 20)
	require.Empty(t, f.Tickets)
	require.Empty(t, f.SOL.Queued)
	require.Zero(t, f.SupportedTokenFor(testPubkey(0x10)).PendingUnstakingAsSOL)
	require.Zero(t, f.SOL.ReserveAmount)
	require.Equal(t, uint64(1), f.SOL.LastProcessedBatchID)

	withdrawn, fee, burnt, mint, err := f.Withdraw(user, requestID)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), withdrawn)
	require.Zero(t, fee)
	require.Equal(t, uint64(5_000), burnt)
	require.True(t, mint.IsZero())
	require.Equal(t, uint64(5_000), f.ReceiptTokenSupply)
}
