package fund

import "errors"

var (
	ErrDepositDisabled  = errors.New("fund: deposit is disabled")
	ErrWithdrawDisabled = errors.New("fund: withdrawal is disabled")
	ErrDonationDisabled = errors.New("fund: donation is disabled")
	ErrTransferDisabled = errors.New("fund: transfer is disabled")

	ErrExceededMaxSupportedTokens    = errors.New("fund: exceeded max supported tokens")
	ErrExceededMaxRestakingVaults    = errors.New("fund: exceeded max restaking vaults")
	ErrAlreadyExistingSupportedToken = errors.New("fund: already existing supported token")
	ErrAlreadyExistingRestakingVault = errors.New("fund: already existing restaking vault")
	ErrSupportedTokenNotFound        = errors.New("fund: supported token not found")
	ErrRestakingVaultNotFound        = errors.New("fund: restaking vault not found")

	ErrExceededDepositCapacity = errors.New("fund: exceeded deposit capacity")
	ErrDepositMetadataExpired  = errors.New("fund: deposit metadata signature expired")
	ErrInvalidSignature        = errors.New("fund: invalid signature")
	ErrInsufficientBalance     = errors.New("fund: insufficient balance")
	ErrInsufficientReserve     = errors.New("fund: insufficient reserve")
	ErrStalePrice              = errors.New("fund: receipt token price is stale")

	ErrExceededMaxWithdrawalRequests = errors.New("fund: exceeded max withdrawal requests")
	ErrWithdrawalRequestNotFound     = errors.New("fund: withdrawal request not found")
	ErrWithdrawalBatchQueueFull      = errors.New("fund: withdrawal batch queue is full")
	ErrWithdrawalBatchNotEnqueuable  = errors.New("fund: withdrawal batch threshold interval not reached")
	ErrWithdrawalBatchNotProcessed   = errors.New("fund: withdrawal batch is not processed yet")
	ErrWithdrawalBatchNotFound       = errors.New("fund: withdrawal batch not found")
	ErrWithdrawalRequestNotCancelable = errors.New("fund: withdrawal request batch already enqueued")
)
