package engine

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/event"
	"github.com/fragmetric-labs/fragmetric-engine/fund"
	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
	"github.com/fragmetric-labs/fragmetric-engine/reward"
)

// DepositMetadata is a short-lived voucher signed off-chain by the deposit
// signer. It binds the accrual rate applied in custom-rate pools to one
// (user, asset, amount) deposit.
type DepositMetadata struct {
	User        solana.PublicKey
	AssetMint   solana.PublicKey
	Amount      uint64
	AccrualRate uint16
	ExpiredAt   int64
	Signature   [ed25519.SignatureSize]byte
}

// Payload is the byte string the deposit signer signs.
func (m *DepositMetadata) Payload() []byte {
	buf := make([]byte, 0, 2*solana.PublicKeyLength+18)
	buf = append(buf, m.User[:]...)
	buf = append(buf, m.AssetMint[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, m.Amount)
	buf = binary.LittleEndian.AppendUint16(buf, m.AccrualRate)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(m.ExpiredAt))
	return buf
}

// Sign fills the metadata signature. Intended for the off-chain voucher
// service and tests.
func (m *DepositMetadata) Sign(key ed25519.PrivateKey) {
	copy(m.Signature[:], ed25519.Sign(key, m.Payload()))
}

func (e *Engine) verifyDepositMetadata(user, mint solana.PublicKey, amount uint64, metadata *DepositMetadata, now int64) (uint16, error) {
	if len(e.cfg.DepositSigner) == 0 {
		return reward.DefaultAccrualRate, nil
	}
	if metadata == nil {
		return 0, ErrDepositMetadataMissing
	}
	if metadata.ExpiredAt <= now {
		return 0, fund.ErrDepositMetadataExpired
	}
	if !metadata.User.Equals(user) || !metadata.AssetMint.Equals(mint) || metadata.Amount != amount {
		return 0, fund.ErrInvalidSignature
	}
	if !ed25519.Verify(e.cfg.DepositSigner, metadata.Payload(), metadata.Signature[:]) {
		return 0, fund.ErrInvalidSignature
	}
	return metadata.AccrualRate, nil
}

// Deposit converts an asset amount into newly minted receipt tokens at the
// current price and starts the deposit accruing in the user's reward pools.
// Returns the receipt tokens minted.
func (e *Engine) Deposit(ctx context.Context, user, mint solana.PublicKey, amount uint64, metadata *DepositMetadata, slot uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.cfg.Fund
	if !f.DepositEnabled {
		return 0, fund.ErrDepositDisabled
	}
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	rate, err := e.verifyDepositMetadata(user, mint, amount, metadata, e.cfg.Clock.Now().Unix())
	if err != nil {
		return 0, err
	}

	value, err := f.ValueForAssetUnits(mint, amount)
	if err != nil {
		return 0, err
	}
	receiptTokens, err := f.ReceiptTokensForAssetValue(value)
	if err != nil {
		return 0, err
	}
	if receiptTokens == 0 {
		return 0, ErrZeroAmount
	}
	state, err := f.AssetStateFor(mint)
	if err != nil {
		return 0, err
	}
	fu := e.fundUser(user)
	// The fund commits after the reward-side sync: dry-run every fund
	// mutation first so a settlement failure leaves both sides untouched.
	if err := state.CheckDeposit(amount); err != nil {
		return 0, err
	}
	if _, err := fundtypes.CheckedAdd(f.ReceiptTokenSupply, receiptTokens); err != nil {
		return 0, err
	}
	if _, err := fundtypes.CheckedAdd(fu.ReceiptTokenAmount, receiptTokens); err != nil {
		return 0, err
	}

	if err := e.addAllocation(e.rewardUser(user), receiptTokens, rate, slot); err != nil {
		return 0, err
	}
	if err := state.RecordDeposit(amount); err != nil {
		return 0, err
	}
	if err := f.Mint(receiptTokens); err != nil {
		return 0, err
	}
	fu.ReceiptTokenAmount += receiptTokens

	e.cfg.Emitter.Emit(ctx, event.UserDepositedToFund{
		User:               user,
		AssetMint:          mint,
		AssetAmount:        amount,
		ReceiptTokenAmount: receiptTokens,
		Slot:               slot,
	})
	return receiptTokens, nil
}

// Donate grows an asset reserve without minting receipt tokens, paying down
// any operation receivable first. Donations lift the receipt token price at
// the next price update.
func (e *Engine) Donate(ctx context.Context, authority, mint solana.PublicKey, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.cfg.Fund
	if !f.DonationEnabled {
		return fund.ErrDonationDisabled
	}
	if !e.isOperator(authority) {
		return ErrUnauthorized
	}
	state, err := f.AssetStateFor(mint)
	if err != nil {
		return err
	}
	receivablePaydown := min(amount, state.OperationReceivableAmount)
	reserve, err := fundtypes.CheckedAdd(state.ReserveAmount, amount-receivablePaydown)
	if err != nil {
		return err
	}
	state.OperationReceivableAmount -= receivablePaydown
	state.ReserveAmount = reserve

	e.cfg.Emitter.Emit(ctx, event.OperatorDonatedToFund{AssetMint: mint, Amount: amount})
	return nil
}
