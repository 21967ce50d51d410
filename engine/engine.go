// Package engine ties the fund ledger, the reward registry and the operation
// pipeline together behind a single serialized facade. Every user and
// operator action goes through one Engine method holding the fund lock, so
// the reward reconciliation invariant (sync before any allocation mutation)
// holds across the whole state.
package engine

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"github.com/fragmetric-labs/fragmetric-engine/event"
	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/operation"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

type Config struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Emitter event.Emitter

	Fund     *fund.Account
	Reward   *reward.Account
	Pipeline *operation.Pipeline

	Admin       solana.PublicKey
	FundManager solana.PublicKey
	Operator    solana.PublicKey

	// DepositSigner, when set, makes deposits require signed metadata
	// carrying the deposit's accrual rate and expiry.
	DepositSigner ed25519.PublicKey
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Fund == nil {
		return fmt.Errorf("fund account is required")
	}
	if c.Reward == nil {
		return fmt.Errorf("reward account is required")
	}
	if c.Pipeline == nil {
		return fmt.Errorf("operation pipeline is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Emitter == nil {
		c.Emitter = &event.LogEmitter{Log: c.Logger}
	}
	return nil
}

// Engine serializes all mutations of one fund.
type Engine struct {
	log *slog.Logger
	cfg Config

	mu sync.Mutex

	fundUsers   map[solana.PublicKey]*fund.UserAccount
	rewardUsers map[solana.PublicKey]*reward.UserAccount
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		log:         cfg.Logger,
		cfg:         cfg,
		fundUsers:   map[solana.PublicKey]*fund.UserAccount{},
		rewardUsers: map[solana.PublicKey]*reward.UserAccount{},
	}, nil
}

func (e *Engine) Fund() *fund.Account     { return e.cfg.Fund }
func (e *Engine) Reward() *reward.Account { return e.cfg.Reward }

// fundUser returns the per-user fund ledger, creating it on first use.
func (e *Engine) fundUser(user solana.PublicKey) *fund.UserAccount {
	if u, ok := e.fundUsers[user]; ok {
		return u
	}
	u := fund.NewUserAccount(user)
	e.fundUsers[user] = u
	return u
}

func (e *Engine) rewardUser(user solana.PublicKey) *reward.UserAccount {
	if u, ok := e.rewardUsers[user]; ok {
		return u
	}
	u := reward.NewUserAccount(user)
	e.rewardUsers[user] = u
	return u
}

// FundUser exposes a user's fund ledger for inspection.
func (e *Engine) FundUser(user solana.PublicKey) *fund.UserAccount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fundUser(user)
}

// RewardUser exposes a user's reward state for inspection.
func (e *Engine) RewardUser(user solana.PublicKey) *reward.UserAccount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewardUser(user)
}

func (e *Engine) isAdmin(authority solana.PublicKey) bool {
	return authority.Equals(e.cfg.Admin)
}

func (e *Engine) isFundManager(authority solana.PublicKey) bool {
	return authority.Equals(e.cfg.FundManager) || e.isAdmin(authority)
}

func (e *Engine) isOperator(authority solana.PublicKey) bool {
	return authority.Equals(e.cfg.Operator) || e.isAdmin(authority)
}
