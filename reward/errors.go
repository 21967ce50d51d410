package reward

import "errors"

var (
	ErrExceededMaxRewardPools   = errors.New("reward: exceeded max reward pools")
	ErrExceededMaxRewards       = errors.New("reward: exceeded max rewards")
	ErrExceededMaxHolders       = errors.New("reward: exceeded max reward pool holders")
	ErrExceededMaxHolderPubkeys = errors.New("reward: exceeded max reward pool holder pubkeys")
	ErrExceededMaxSettlements   = errors.New("reward: exceeded max reward settlements")
	ErrAlreadyExistingPool      = errors.New("reward: already existing reward pool")
	ErrAlreadyExistingReward    = errors.New("reward: already existing reward")
	ErrAlreadyExistingHolder    = errors.New("reward: already existing reward pool holder")
	ErrPoolNotFound             = errors.New("reward: reward pool not found")
	ErrRewardNotFound           = errors.New("reward: reward not found")
	ErrHolderNotFound           = errors.New("reward: reward pool holder not found")
	ErrPoolClosed               = errors.New("reward: reward pool is closed")
	ErrPoolCloseCondition       = errors.New("reward: reward pool close condition not met")
	ErrSlotRegression           = errors.New("reward: slot precedes last update")

	// ErrInvalidPoolAccess guards user reward account mutations: the acting
	// authority must be either the user or their delegate.
	ErrInvalidPoolAccess = errors.New("reward: user reward account authority must be either user or delegate")

	// ErrInvalidTotalUserSettledAmount trips when per-user settlement shares
	// for one block would exceed the block's distributed amount.
	ErrInvalidTotalUserSettledAmount = errors.New("reward: total user settled amount exceeds block amount")

	ErrInsufficientSettledAmount = errors.New("reward: claim exceeds settled amount")
)
