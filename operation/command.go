// Package operation implements the fund operation command pipeline: a
// resumable state machine sequencing the multi-step cash flow that keeps
// fund capital deployed while servicing withdrawals. Each Step call advances
// exactly one sub-state transition and persists the cursor, so a crashed
// operator resumes by calling Step again.
package operation

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

type CommandKind uint8

const (
	CommandInitialize CommandKind = iota
	CommandEnqueueWithdrawalBatch
	CommandClaimUnrestakedVST
	CommandDenormalizeNT
	CommandUndelegateVST
	CommandUnrestakeVRT
	CommandClaimUnstakedSOL
	CommandProcessWithdrawalBatch
	CommandUnstakeLST
	CommandStakeSOL
	CommandNormalizeST
	CommandRestakeVST
	CommandDelegateVST
	CommandHarvestReward

	numCommands
)

func (k CommandKind) String() string {
	switch k {
	case CommandInitialize:
		return "initialize"
	case CommandEnqueueWithdrawalBatch:
		return "enqueueWithdrawalBatch"
	case CommandClaimUnrestakedVST:
		return "claimUnrestakedVst"
	case CommandDenormalizeNT:
		return "denormalizeNt"
	case CommandUndelegateVST:
		return "undelegateVst"
	case CommandUnrestakeVRT:
		return "unrestakeVrt"
	case CommandClaimUnstakedSOL:
		return "claimUnstakedSol"
	case CommandProcessWithdrawalBatch:
		return "processWithdrawalBatch"
	case CommandUnstakeLST:
		return "unstakeLst"
	case CommandStakeSOL:
		return "stakeSol"
	case CommandNormalizeST:
		return "normalizeSt"
	case CommandRestakeVST:
		return "restakeVst"
	case CommandDelegateVST:
		return "delegateVst"
	case CommandHarvestReward:
		return "harvestReward"
	default:
		return "unknown"
	}
}

// NextInCycle is the fixed command ordering the pipeline auto-advances
// through.
func (k CommandKind) NextInCycle() CommandKind {
	return (k + 1) % numCommands
}

type Phase uint8

const (
	// PhaseNew commands compute their work items on the next step.
	PhaseNew Phase = 0
	// PhaseExecute commands drain their item list one chunk per step.
	PhaseExecute Phase = 1
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseExecute:
		return "execute"
	default:
		return "unknown"
	}
}

const (
	// CommandExpirationSeconds is how long a command may stay in flight
	// before the operator is allowed to force-reset it.
	CommandExpirationSeconds = 600

	// MaxRequiredAccounts bounds the account metas one command entry can
	// carry.
	MaxRequiredAccounts = 32
)

var (
	ErrUnauthorizedCommand    = errors.New("operation: unauthorized command for current cycle position")
	ErrCommandExecutionFailed = errors.New("operation: command execution failed")
	ErrAccountComputation     = errors.New("operation: command account computation failed")
	ErrCommandNotExpired      = errors.New("operation: command has not expired")
)

// Item is one unit of work discovered by a command's prepare phase.
type Item struct {
	Mint     solana.PublicKey
	Vault    solana.PublicKey
	Operator solana.PublicKey
	TicketID uint64
	Amount   uint64
}

// AccountMeta names an account a command's execution touches.
type AccountMeta struct {
	Pubkey   solana.PublicKey
	Writable bool
}

// Entry is the persisted "next command" cursor.
type Entry struct {
	Command CommandKind
	Phase   Phase
	// Forced marks an entry set via forced override; forced batch commands
	// skip the threshold-interval gate.
	Forced           bool
	Items            []Item
	RequiredAccounts []AccountMeta
}

// State is the pipeline's persisted cursor, embedded in the fund.
type State struct {
	UpdatedSlot uint64
	UpdatedAt   int64
	ExpiredAt   int64

	// NoTransition permits forced command overrides, used by tests and
	// admin tooling to target a cycle position directly.
	NoTransition bool

	// NextSequence increments per completed command and wraps; NumOperated
	// counts completed commands monotonically. Together they let event
	// consumers detect duplicate or skipped runs.
	NextSequence uint16
	NumOperated  uint64

	Next Entry
}
