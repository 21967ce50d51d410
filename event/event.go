// Package event defines the engine's append-only audit trail: one typed
// event per state-changing action, emitted through a pluggable sink.
package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type Event interface {
	EventName() string
}

// Emitter receives every event the engine produces, in order.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// LogEmitter writes events to a structured logger.
type LogEmitter struct {
	Log *slog.Logger
}

func (e *LogEmitter) Emit(ctx context.Context, ev Event) {
	e.Log.InfoContext(ctx, "event", slog.String("name", ev.EventName()), slog.Any("payload", ev))
}

// MemoryEmitter collects events for inspection, primarily in tests.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (e *MemoryEmitter) Emit(_ context.Context, ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *MemoryEmitter) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// Named returns the collected events carrying the given name.
func (e *MemoryEmitter) Named(name string) []Event {
	var out []Event
	for _, ev := range e.Events() {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}

type UserDepositedToFund struct {
	User               solana.PublicKey
	AssetMint          solana.PublicKey // zero for SOL
	AssetAmount        uint64
	ReceiptTokenAmount uint64
	Slot               uint64
}

func (UserDepositedToFund) EventName() string { return "userDepositedToFund" }

type UserRequestedWithdrawalFromFund struct {
	User               solana.PublicKey
	AssetMint          solana.PublicKey
	RequestID          uint64
	BatchID            uint64
	ReceiptTokenAmount uint64
}

func (UserRequestedWithdrawalFromFund) EventName() string { return "userRequestedWithdrawalFromFund" }

type UserCanceledWithdrawalRequestFromFund struct {
	User               solana.PublicKey
	RequestID          uint64
	BatchID            uint64
	ReceiptTokenAmount uint64
}

func (UserCanceledWithdrawalRequestFromFund) EventName() string {
	return "userCanceledWithdrawalRequestFromFund"
}

type UserWithdrewFromFund struct {
	User                    solana.PublicKey
	AssetMint               solana.PublicKey
	RequestID               uint64
	BatchID                 uint64
	BurntReceiptTokenAmount uint64
	WithdrawnAmount         uint64
	DeductedFeeAmount       uint64
}

func (UserWithdrewFromFund) EventName() string { return "userWithdrewFromFund" }

type UserTransferredReceiptToken struct {
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
	Slot   uint64
}

func (UserTransferredReceiptToken) EventName() string { return "userTransferredReceiptToken" }

type UserWrappedReceiptToken struct {
	User   solana.PublicKey
	Amount uint64
	Slot   uint64
}

func (UserWrappedReceiptToken) EventName() string { return "userWrappedReceiptToken" }

type UserUnwrappedReceiptToken struct {
	User   solana.PublicKey
	Amount uint64
	Slot   uint64
}

func (UserUnwrappedReceiptToken) EventName() string { return "userUnwrappedReceiptToken" }

type UserDelegatedRewardAccount struct {
	User     solana.PublicKey
	Delegate solana.PublicKey
}

func (UserDelegatedRewardAccount) EventName() string { return "userDelegatedRewardAccount" }

type UserUpdatedRewardPool struct {
	User  solana.PublicKey
	Pools []uint8
	Slot  uint64
}

func (UserUpdatedRewardPool) EventName() string { return "userUpdatedRewardPool" }

type UserClaimedReward struct {
	User     solana.PublicKey
	PoolID   uint8
	RewardID uint8
	Amount   uint64
	Slot     uint64
}

func (UserClaimedReward) EventName() string { return "userClaimedReward" }

type FundManagerUpdatedRewardPool struct {
	PoolID   uint8
	RewardID uint8
	Amount   uint64
	Slot     uint64
}

func (FundManagerUpdatedRewardPool) EventName() string { return "fundManagerUpdatedRewardPool" }

type OperatorDonatedToFund struct {
	AssetMint solana.PublicKey
	Amount    uint64
}

func (OperatorDonatedToFund) EventName() string { return "operatorDonatedToFund" }

type OperatorUpdatedFundPrices struct {
	OneReceiptTokenAsSOL uint64
	Slot                 uint64
}

func (OperatorUpdatedFundPrices) EventName() string { return "operatorUpdatedFundPrices" }

// OperatorRanFundCommand carries the step's sub-state transition and the
// command result amounts, bit-accurate against the accounting mutations of
// the same step.
type OperatorRanFundCommand struct {
	NextSequence uint16
	NumOperated  uint64
	Command      string
	Advanced     bool
	Result       any
}

func (OperatorRanFundCommand) EventName() string { return "operatorRanFundCommand" }
