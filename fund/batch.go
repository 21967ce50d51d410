package fund

import (
	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

// MaxQueuedBatches is the queued-ring capacity per asset, excluding the one
// pending batch requests accumulate into.
const MaxQueuedBatches = 10

// WithdrawalBatch is the queue entry embedded in AssetState. BatchID zero
// marks an absent pending batch; ids increase strictly per asset.
type WithdrawalBatch struct {
	BatchID            uint64
	NumRequests        uint32
	ReceiptTokenAmount uint64
	EnqueuedAt         int64
}

// WithdrawalBatchRecord is the standalone per-(asset, batch) account:
// requested vs claimed totals and the fee withheld. Once every request is
// claimed it is an immutable informative record.
type WithdrawalBatchRecord struct {
	AssetMint solana.PublicKey // zero for SOL
	BatchID   uint64

	NumRequests      uint32
	NumClaimed       uint32
	RequestedReceiptTokenAmount uint64
	ClaimedReceiptTokenAmount   uint64

	// AssetUserAmount is the net asset owed to requesters after the fee.
	AssetUserAmount        uint64
	ClaimedAssetUserAmount uint64
	AssetFeeAmount         uint64

	ProcessedAt int64 // zero until processed
}

func (a *Account) batchRecord(mint solana.PublicKey, batchID uint64) *WithdrawalBatchRecord {
	for i := range a.BatchRecords {
		if a.BatchRecords[i].BatchID == batchID && a.BatchRecords[i].AssetMint.Equals(mint) {
			return &a.BatchRecords[i]
		}
	}
	return nil
}

// CheckWithdrawalRequest runs RequestWithdrawal's preconditions without
// mutating any state.
func (a *Account) CheckWithdrawalRequest(user *UserAccount, targetMint solana.PublicKey, receiptTokenAmount uint64) error {
	if !a.WithdrawEnabled {
		return ErrWithdrawDisabled
	}
	if receiptTokenAmount == 0 {
		return fundtypes.ErrCalculationArithmetic
	}
	if len(user.Requests) >= MaxWithdrawalRequestsPerUser {
		return ErrExceededMaxWithdrawalRequests
	}
	state, err := a.AssetStateFor(targetMint)
	if err != nil {
		return err
	}
	free, err := fundtypes.CheckedSub(user.ReceiptTokenAmount, user.LockedReceiptTokenAmount)
	if err != nil || receiptTokenAmount > free {
		return ErrInsufficientBalance
	}
	_, err = fundtypes.CheckedAdd(state.Pending.ReceiptTokenAmount, receiptTokenAmount)
	return err
}

// RequestWithdrawal locks the user's receipt tokens into the asset's pending
// batch, creating the batch when absent. Returns the assigned request id and
// batch id.
func (a *Account) RequestWithdrawal(user *UserAccount, targetMint solana.PublicKey, receiptTokenAmount uint64, now int64) (requestID, batchID uint64, err error) {
	if err := a.CheckWithdrawalRequest(user, targetMint, receiptTokenAmount); err != nil {
		return 0, 0, err
	}
	state, err := a.AssetStateFor(targetMint)
	if err != nil {
		return 0, 0, err
	}

	if state.Pending.BatchID == 0 {
		state.LastBatchID++
		state.Pending = WithdrawalBatch{BatchID: state.LastBatchID}
	}
	pendingAmount := state.Pending.ReceiptTokenAmount + receiptTokenAmount

	a.NextWithdrawalRequestID++
	requestID = a.NextWithdrawalRequestID
	user.Requests = append(user.Requests, WithdrawalRequest{
		BatchID:            state.Pending.BatchID,
		RequestID:          requestID,
		ReceiptTokenAmount: receiptTokenAmount,
		CreatedAt:          now,
		TargetMint:         targetMint,
	})
	user.LockedReceiptTokenAmount += receiptTokenAmount
	state.Pending.ReceiptTokenAmount = pendingAmount
	state.Pending.NumRequests++
	return requestID, state.Pending.BatchID, nil
}

// CancelWithdrawalRequest unwinds a request while its batch is still
// pending. An enqueued or processed batch can no longer be amended.
func (a *Account) CancelWithdrawalRequest(user *UserAccount, requestID uint64) (*WithdrawalRequest, error) {
	index, request := user.requestByID(requestID)
	if request == nil {
		return nil, ErrWithdrawalRequestNotFound
	}
	state, err := a.AssetStateFor(request.TargetMint)
	if err != nil {
		return nil, err
	}
	if state.Pending.BatchID != request.BatchID {
		return nil, ErrWithdrawalRequestNotCancelable
	}
	state.Pending.ReceiptTokenAmount, err = fundtypes.CheckedSub(state.Pending.ReceiptTokenAmount, request.ReceiptTokenAmount)
	if err != nil {
		return nil, err
	}
	state.Pending.NumRequests--
	user.LockedReceiptTokenAmount -= request.ReceiptTokenAmount
	canceled := *request
	user.removeRequest(index)
	return &canceled, nil
}

// EnqueueWithdrawalBatch moves the pending batch into the queued ring once
// the threshold interval elapsed since the last enqueue, or when forced.
func (a *Account) EnqueueWithdrawalBatch(mint solana.PublicKey, forced bool, now int64) (*WithdrawalBatch, error) {
	state, err := a.AssetStateFor(mint)
	if err != nil {
		return nil, err
	}
	if state.Pending.BatchID == 0 || state.Pending.NumRequests == 0 {
		return nil, nil
	}
	if !forced && now-state.LastEnqueuedAt < a.BatchThresholdSeconds {
		return nil, ErrWithdrawalBatchNotEnqueuable
	}
	if len(state.Queued) >= MaxQueuedBatches {
		return nil, ErrWithdrawalBatchQueueFull
	}
	batch := state.Pending
	batch.EnqueuedAt = now
	state.Queued = append(state.Queued, batch)
	state.Pending = WithdrawalBatch{}
	state.LastEnqueuedAt = now

	a.BatchRecords = append(a.BatchRecords, WithdrawalBatchRecord{
		AssetMint:                   mint,
		BatchID:                     batch.BatchID,
		NumRequests:                 batch.NumRequests,
		RequestedReceiptTokenAmount: batch.ReceiptTokenAmount,
	})
	return &batch, nil
}

// ProcessWithdrawalBatch pops the oldest queued batch, converts its receipt
// tokens into the payout asset at the current price, withholds the
// withdrawal fee into the asset treasury, and earmarks the net amount out of
// the reserve. A batch the reserve cannot fully cover stays queued for the
// next operation cycle.
func (a *Account) ProcessWithdrawalBatch(mint solana.PublicKey, now int64) (*WithdrawalBatchRecord, error) {
	state, err := a.AssetStateFor(mint)
	if err != nil {
		return nil, err
	}
	if len(state.Queued) == 0 {
		return nil, nil
	}
	batch := state.Queued[0]

	valueAsSOL, err := a.AssetValueForReceiptTokens(batch.ReceiptTokenAmount)
	if err != nil {
		return nil, err
	}
	oneAsset, decimals, err := a.OneAssetAsSOL(mint)
	if err != nil {
		return nil, err
	}
	assetAmount, err := fundtypes.MulDiv(valueAsSOL, pow10(decimals), oneAsset)
	if err != nil {
		return nil, err
	}
	feeAmount, err := fundtypes.MulBps(assetAmount, a.WithdrawalFeeRateBps)
	if err != nil {
		return nil, err
	}
	userAmount := assetAmount - feeAmount

	if assetAmount > state.ReserveAmount {
		return nil, ErrInsufficientReserve
	}
	record := a.batchRecord(mint, batch.BatchID)
	if record == nil {
		return nil, ErrWithdrawalBatchNotFound
	}

	state.ReserveAmount -= assetAmount
	state.TreasuryFeeAmount, err = fundtypes.CheckedAdd(state.TreasuryFeeAmount, feeAmount)
	if err != nil {
		return nil, err
	}
	state.Queued = append(state.Queued[:0], state.Queued[1:]...)
	state.LastProcessedBatchID = batch.BatchID

	record.AssetUserAmount = userAmount
	record.AssetFeeAmount = feeAmount
	record.ProcessedAt = now
	return record, nil
}

// Withdraw pays out one processed request: burns the locked receipt tokens
// and releases the user's proportional share of the batch's net asset.
func (a *Account) Withdraw(user *UserAccount, requestID uint64) (withdrawn, fee, burnt uint64, targetMint solana.PublicKey, err error) {
	index, request := user.requestByID(requestID)
	if request == nil {
		return 0, 0, 0, solana.PublicKey{}, ErrWithdrawalRequestNotFound
	}
	record := a.batchRecord(request.TargetMint, request.BatchID)
	if record == nil || record.ProcessedAt == 0 {
		return 0, 0, 0, solana.PublicKey{}, ErrWithdrawalBatchNotProcessed
	}

	withdrawn, err = fundtypes.MulDiv(request.ReceiptTokenAmount, record.AssetUserAmount, record.RequestedReceiptTokenAmount)
	if err != nil {
		return 0, 0, 0, solana.PublicKey{}, err
	}
	fee, err = fundtypes.MulDiv(request.ReceiptTokenAmount, record.AssetFeeAmount, record.RequestedReceiptTokenAmount)
	if err != nil {
		return 0, 0, 0, solana.PublicKey{}, err
	}
	burnt = request.ReceiptTokenAmount

	if err = a.Burn(burnt); err != nil {
		return 0, 0, 0, solana.PublicKey{}, err
	}
	user.LockedReceiptTokenAmount -= burnt
	user.ReceiptTokenAmount -= burnt

	record.NumClaimed++
	record.ClaimedReceiptTokenAmount += burnt
	record.ClaimedAssetUserAmount += withdrawn
	targetMint = request.TargetMint
	user.removeRequest(index)
	return withdrawn, fee, burnt, targetMint, nil
}

// QueuedWithdrawalLiability sums the receipt tokens across queued batches
// for one asset, used by the pipeline to size unstaking.
func (a *Account) QueuedWithdrawalLiability(mint solana.PublicKey) (uint64, error) {
	state, err := a.AssetStateFor(mint)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, batch := range state.Queued {
		total, err = fundtypes.CheckedAdd(total, batch.ReceiptTokenAmount)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
