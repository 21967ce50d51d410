package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"github.com/fragmetric-labs/fragmetric-engine/fund"
)

const defaultMaxItemsPerStep = 4

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Fund   *fund.Account

	Staking    StakePoolClient
	Restaking  RestakingVaultClient
	Swap       SwapClient
	Normalizer NormalizedTokenClient

	// MaxItemsPerStep bounds how many items one Execute step drains,
	// mirroring the compute budget of a single transaction.
	MaxItemsPerStep int

	// CooldownSeconds is how long unstake/unrestake tickets take to mature.
	CooldownSeconds int64
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Fund == nil {
		return errors.New("fund account is required")
	}
	if c.Staking == nil {
		return errors.New("staking client is required")
	}
	if c.Restaking == nil {
		return errors.New("restaking client is required")
	}
	if c.Swap == nil {
		return errors.New("swap client is required")
	}
	if c.MaxItemsPerStep <= 0 {
		c.MaxItemsPerStep = defaultMaxItemsPerStep
	}
	return nil
}

// Pipeline drives one fund's operation command cycle. It is not safe for
// concurrent use; the engine serializes access per fund.
type Pipeline struct {
	log *slog.Logger
	cfg Config

	State State
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return &Pipeline{log: cfg.Logger, cfg: cfg}, nil
}

type StepStatus uint8

const (
	// StepInProgress means the current command has more work; call Step
	// again.
	StepInProgress StepStatus = 0
	// StepAdvanced means the current command completed and the cursor moved
	// to the next command in the cycle.
	StepAdvanced StepStatus = 1
)

// StepOutcome reports what one Step call did.
type StepOutcome struct {
	Status  StepStatus
	Command CommandKind
	Phase   Phase
	// Result carries the command-specific amounts moved in this step; nil
	// for prepare steps and item-less completions.
	Result       any
	NextCommand  CommandKind
	NextSequence uint16
	NumOperated  uint64
}

// Step advances exactly one sub-state transition of the current command.
// Passing a non-nil forced command overrides the cursor, permitted only
// while the NoTransition flag is set. Any error leaves the cursor unchanged
// and safe to retry.
func (p *Pipeline) Step(ctx context.Context, slot uint64, forced *CommandKind) (*StepOutcome, error) {
	now := p.cfg.Clock.Now().Unix()

	if forced != nil && *forced != p.State.Next.Command {
		if !p.State.NoTransition {
			return nil, ErrUnauthorizedCommand
		}
		p.State.Next = Entry{Command: *forced, Forced: true}
	}
	entry := &p.State.Next
	outcome := &StepOutcome{Command: entry.Command, Phase: entry.Phase}

	switch entry.Phase {
	case PhaseNew:
		items, err := p.prepare(ctx, entry.Command, now)
		if err != nil {
			return nil, err
		}
		accounts, err := requiredAccounts(items)
		if err != nil {
			return nil, err
		}
		entry.Items = items
		entry.RequiredAccounts = accounts
		entry.Phase = PhaseExecute
		outcome.Status = StepInProgress

	case PhaseExecute:
		if len(entry.Items) == 0 {
			result, err := p.complete(entry.Command)
			if err != nil {
				return nil, err
			}
			outcome.Result = result
			p.advance(entry.Command)
			outcome.Status = StepAdvanced
		} else {
			chunk := min(p.cfg.MaxItemsPerStep, len(entry.Items))
			result, err := p.execute(ctx, entry.Command, entry.Items[:chunk], entry.Forced, now)
			if err != nil {
				return nil, err
			}
			entry.Items = entry.Items[chunk:]
			outcome.Result = result
			if len(entry.Items) == 0 {
				p.advance(entry.Command)
				outcome.Status = StepAdvanced
			} else {
				outcome.Status = StepInProgress
			}
		}
	}

	p.State.UpdatedSlot = slot
	p.State.UpdatedAt = now
	p.State.ExpiredAt = now + CommandExpirationSeconds
	outcome.NextCommand = p.State.Next.Command
	outcome.NextSequence = p.State.NextSequence
	outcome.NumOperated = p.State.NumOperated
	return outcome, nil
}

func (p *Pipeline) advance(completed CommandKind) {
	p.State.NumOperated++
	p.State.NextSequence++ // uint16, wraps to zero after 65535
	p.State.Next = Entry{Command: completed.NextInCycle()}
}

// ForceReset puts an expired in-flight command back to its New phase, the
// recovery path for a stuck external dependency.
func (p *Pipeline) ForceReset() error {
	now := p.cfg.Clock.Now().Unix()
	if p.State.ExpiredAt == 0 || now < p.State.ExpiredAt {
		return ErrCommandNotExpired
	}
	p.State.Next = Entry{Command: p.State.Next.Command}
	p.State.UpdatedAt = now
	p.State.ExpiredAt = now + CommandExpirationSeconds
	return nil
}

func requiredAccounts(items []Item) ([]AccountMeta, error) {
	var metas []AccountMeta
	seen := make(map[solana.PublicKey]bool)
	add := func(pk solana.PublicKey) {
		if pk.IsZero() || seen[pk] {
			return
		}
		seen[pk] = true
		metas = append(metas, AccountMeta{Pubkey: pk, Writable: true})
	}
	for _, item := range items {
		add(item.Mint)
		add(item.Vault)
		add(item.Operator)
	}
	if len(metas) > MaxRequiredAccounts {
		return nil, fmt.Errorf("%w: %d account metas exceed %d", ErrAccountComputation, len(metas), MaxRequiredAccounts)
	}
	return metas, nil
}
