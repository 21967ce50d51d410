// Package opclient provides the operation pipeline's external program
// clients. The Simulator applies the fund's cached prices instead of
// submitting transactions; the daemon runs it in shadow mode and the test
// suite drives the pipeline with it.
package opclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

var ErrTicketNotMatured = errors.New("opclient: ticket not matured")

type SimulatorConfig struct {
	Logger *slog.Logger
	Fund   *fund.Account

	// RewardBalances seeds harvestable amounts per (vault, reward mint).
	RewardBalances map[solana.PublicKey]map[solana.PublicKey]uint64
	// SwapRates overrides per-mint lamport prices for mints the fund does
	// not support directly, such as reward tokens.
	SwapRates map[solana.PublicKey]uint64
}

func (c *SimulatorConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Fund == nil {
		return fmt.Errorf("fund account is required")
	}
	return nil
}

// Simulator satisfies every operation port by converting amounts at the
// fund's cached prices. Tickets it issues pay out exactly the quoted amount.
type Simulator struct {
	log *slog.Logger
	cfg SimulatorConfig

	mu           sync.Mutex
	nextTicketID uint64
	tickets      map[uint64]uint64
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %w", err)
	}
	return &Simulator{log: cfg.Logger, cfg: cfg, tickets: map[uint64]uint64{}}, nil
}

func (s *Simulator) Stake(_ context.Context, mint solana.PublicKey, lamports uint64) (uint64, error) {
	return s.cfg.Fund.AssetUnitsForValue(mint, lamports)
}

func (s *Simulator) Unstake(_ context.Context, mint solana.PublicKey, lstAmount uint64) (uint64, error) {
	lamports, err := s.cfg.Fund.ValueForAssetUnits(mint, lstAmount)
	if err != nil {
		return 0, err
	}
	s.recordTicket(lamports)
	return lamports, nil
}

func (s *Simulator) ClaimUnstaked(_ context.Context, ticketID uint64) (uint64, error) {
	return s.takeTicket(ticketID)
}

func (s *Simulator) Restake(_ context.Context, vault solana.PublicKey, vstAmount uint64) (uint64, error) {
	// VRT issued 1:1 against the deposited VST; the vault exchange rate is
	// reflected through the pricing source.
	return vstAmount, nil
}

func (s *Simulator) Unrestake(_ context.Context, vault solana.PublicKey, vrtAmount uint64) (uint64, error) {
	s.recordTicket(vrtAmount)
	return vrtAmount, nil
}

func (s *Simulator) ClaimUnrestaked(_ context.Context, ticketID uint64) (uint64, error) {
	return s.takeTicket(ticketID)
}

func (s *Simulator) Delegate(_ context.Context, vault, operator solana.PublicKey, amount uint64) error {
	s.log.Debug("delegate", slog.String("vault", vault.String()), slog.String("operator", operator.String()), slog.Uint64("amount", amount))
	return nil
}

func (s *Simulator) Undelegate(_ context.Context, vault, operator solana.PublicKey, amount uint64) error {
	s.log.Debug("undelegate", slog.String("vault", vault.String()), slog.String("operator", operator.String()), slog.Uint64("amount", amount))
	return nil
}

func (s *Simulator) Harvest(_ context.Context, vault solana.PublicKey, rewardMint solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balances := s.cfg.RewardBalances[vault]
	amount := balances[rewardMint]
	if amount > 0 {
		balances[rewardMint] = 0
	}
	return amount, nil
}

// SetRewardBalance seeds a harvestable reward amount.
func (s *Simulator) SetRewardBalance(vault, rewardMint solana.PublicKey, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.RewardBalances == nil {
		s.cfg.RewardBalances = map[solana.PublicKey]map[solana.PublicKey]uint64{}
	}
	if s.cfg.RewardBalances[vault] == nil {
		s.cfg.RewardBalances[vault] = map[solana.PublicKey]uint64{}
	}
	s.cfg.RewardBalances[vault][rewardMint] = amount
}

func (s *Simulator) Swap(_ context.Context, inMint, outMint solana.PublicKey, amountIn uint64) (uint64, error) {
	inValue, err := s.valueOf(inMint, amountIn)
	if err != nil {
		return 0, err
	}
	return s.unitsOf(outMint, inValue)
}

func (s *Simulator) Normalize(_ context.Context, mint solana.PublicKey, amount uint64) (uint64, error) {
	return amount, nil
}

func (s *Simulator) Denormalize(_ context.Context, mint solana.PublicKey, ntAmount uint64) (uint64, error) {
	return ntAmount, nil
}

func (s *Simulator) valueOf(mint solana.PublicKey, amount uint64) (uint64, error) {
	if rate, ok := s.cfg.SwapRates[mint]; ok {
		return fundtypes.MulDiv(amount, rate, 1_000_000_000)
	}
	return s.cfg.Fund.ValueForAssetUnits(mint, amount)
}

func (s *Simulator) unitsOf(mint solana.PublicKey, value uint64) (uint64, error) {
	if rate, ok := s.cfg.SwapRates[mint]; ok {
		return fundtypes.MulDiv(value, 1_000_000_000, rate)
	}
	return s.cfg.Fund.AssetUnitsForValue(mint, value)
}

func (s *Simulator) recordTicket(amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Ticket IDs in the fund ledger are assigned after the port call
	// returns, sequentially from 1, so the simulator mirrors the sequence.
	s.nextTicketID++
	s.tickets[s.nextTicketID] = amount
}

func (s *Simulator) takeTicket(ticketID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.tickets[ticketID]
	if !ok {
		return 0, fmt.Errorf("%w: ticket %d", ErrTicketNotMatured, ticketID)
	}
	delete(s.tickets, ticketID)
	return amount, nil
}
