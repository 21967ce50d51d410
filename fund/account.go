// Package fund implements the fund account accounting core and the
// withdrawal batch manager: per-asset bookkeeping of reserves, deposits,
// treasury and the batched withdrawal lifecycle for one receipt token.
package fund

import (
	"github.com/gagliardetto/solana-go"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

const (
	MaxSupportedTokens = 30
	MaxRestakingVaults = 30
	MaxVaultOperators  = 8
)

// Account is the central ledger for one receipt token.
type Account struct {
	ReceiptTokenMint     solana.PublicKey
	ReceiptTokenProgram  solana.PublicKey
	ReceiptTokenDecimals uint8
	ReceiptTokenSupply   uint64

	// ReceiptTokenValue is the slot-stamped backing of the receipt token.
	// OneReceiptTokenAsSOL is its cached per-whole-token lamport price.
	ReceiptTokenValue    fundtypes.TokenValue
	OneReceiptTokenAsSOL uint64
	PriceUpdatedSlot     uint64

	DepositEnabled  bool
	WithdrawEnabled bool
	DonationEnabled bool
	TransferEnabled bool

	WithdrawalFeeRateBps    uint16
	RewardCommissionRateBps uint16
	// BatchThresholdSeconds gates how often a pending withdrawal batch may
	// be enqueued without forcing.
	BatchThresholdSeconds int64

	SOL             AssetState
	SupportedTokens []SupportedToken
	NormalizedToken NormalizedTokenConfig
	RestakingVaults []RestakingVault

	NextWithdrawalRequestID uint64

	// ProgramRevenue accumulates reward commission, in lamport value.
	ProgramRevenue uint64

	BatchRecords []WithdrawalBatchRecord
	Tickets      []UnstakeTicket
	NextTicketID uint64
}

// SupportedToken is one deposit/withdraw-eligible token inside the fund.
type SupportedToken struct {
	Mint     solana.PublicKey
	Program  solana.PublicKey
	Decimals uint8
	Pricing  fundtypes.PricingSourceRef
	// OneTokenAsSOL is refreshed by the operator price update alongside the
	// receipt token price.
	OneTokenAsSOL uint64

	State AssetState

	SOLAllocationWeightBps uint16
	SOLAllocationCapacity  uint64
	PendingUnstakingAsSOL  uint64
	RebalancingAmount      uint64
}

// AssetState is the per-asset bookkeeping substrate shared by every other
// component.
type AssetState struct {
	AccumulatedDepositAmount uint64
	// DepositCapacityAmount of zero means uncapped.
	DepositCapacityAmount uint64

	NormalReserveRateBps   uint16
	NormalReserveMaxAmount uint64

	// ReserveAmount is the liquid float available for withdrawals and
	// deployment. OperationReservedAmount is float already earmarked by an
	// in-flight operation command. OperationReceivableAmount is owed to the
	// fund by operations (fees, slippage), offset by donations.
	ReserveAmount             uint64
	OperationReservedAmount   uint64
	OperationReceivableAmount uint64
	TreasuryFeeAmount         uint64

	// WithdrawableValueAsReceiptToken is informative and may be stale;
	// callers must not treat it as a hard limit.
	WithdrawableValueAsReceiptToken uint64

	// Withdrawal batch queue: one pending batch (BatchID zero when absent)
	// plus up to MaxQueuedBatches enqueued batches awaiting processing.
	Pending              WithdrawalBatch
	Queued               []WithdrawalBatch
	LastBatchID          uint64
	LastEnqueuedAt       int64
	LastProcessedBatchID uint64
}

// NormalizedTokenConfig describes the optional basket-backed derivative.
type NormalizedTokenConfig struct {
	Enabled  bool
	Mint     solana.PublicKey
	Program  solana.PublicKey
	Decimals uint8
	Supply   uint64
	Value    fundtypes.TokenValue
	// ConstituentMints lists the supported tokens the basket is built from.
	ConstituentMints []solana.PublicKey
}

func (n *NormalizedTokenConfig) IsConstituent(mint solana.PublicKey) bool {
	for _, m := range n.ConstituentMints {
		if m.Equals(mint) {
			return true
		}
	}
	return false
}

// RestakingVault is one external vault the fund delegates capital into.
type RestakingVault struct {
	Vault solana.PublicKey
	// ReceiptMint is the vault receipt token (VRT); UnderlyingMint is the
	// supported token (VST) deposited into the vault.
	ReceiptMint    solana.PublicKey
	UnderlyingMint solana.PublicKey
	Pricing        fundtypes.PricingSourceRef

	// ReceiptBalance is VRT held by the fund; DelegatedAmount the portion
	// delegated out to vault operators.
	ReceiptBalance  uint64
	DelegatedAmount uint64
	Capacity        uint64

	Delegations []OperatorDelegation
	// CompoundingRewardMints lists reward tokens harvested from this vault.
	CompoundingRewardMints []solana.PublicKey
}

type OperatorDelegation struct {
	Operator solana.PublicKey
	Amount   uint64
}

// UnstakeTicket tracks an in-flight unstake/unrestake claim against an
// external program.
type UnstakeTicket struct {
	ID   uint64
	Kind TicketKind
	// Mint is the asset the claim pays out in (zero for SOL); SourceMint is
	// the asset that was unstaked to create the ticket.
	Mint        solana.PublicKey
	SourceMint  solana.PublicKey
	Amount      uint64
	CreatedAt   int64
	ClaimableAt int64
}

type TicketKind uint8

const (
	TicketKindUnstakeSOL   TicketKind = 0
	TicketKindUnrestakeVST TicketKind = 1
)

func NewAccount(receiptTokenMint, receiptTokenProgram solana.PublicKey, decimals uint8) *Account {
	return &Account{
		ReceiptTokenMint:     receiptTokenMint,
		ReceiptTokenProgram:  receiptTokenProgram,
		ReceiptTokenDecimals: decimals,
		DepositEnabled:       true,
		WithdrawEnabled:      true,
		TransferEnabled:      true,
	}
}

func (a *Account) AddSupportedToken(token SupportedToken) error {
	if len(a.SupportedTokens) >= MaxSupportedTokens {
		return ErrExceededMaxSupportedTokens
	}
	for i := range a.SupportedTokens {
		if a.SupportedTokens[i].Mint.Equals(token.Mint) {
			return ErrAlreadyExistingSupportedToken
		}
	}
	a.SupportedTokens = append(a.SupportedTokens, token)
	return nil
}

func (a *Account) AddRestakingVault(vault RestakingVault) error {
	if len(a.RestakingVaults) >= MaxRestakingVaults {
		return ErrExceededMaxRestakingVaults
	}
	for i := range a.RestakingVaults {
		if a.RestakingVaults[i].Vault.Equals(vault.Vault) {
			return ErrAlreadyExistingRestakingVault
		}
	}
	if a.SupportedTokenFor(vault.UnderlyingMint) == nil {
		return ErrSupportedTokenNotFound
	}
	a.RestakingVaults = append(a.RestakingVaults, vault)
	return nil
}

// SupportedTokenFor resolves a supported token by mint.
func (a *Account) SupportedTokenFor(mint solana.PublicKey) *SupportedToken {
	for i := range a.SupportedTokens {
		if a.SupportedTokens[i].Mint.Equals(mint) {
			return &a.SupportedTokens[i]
		}
	}
	return nil
}

// AssetStateFor resolves the asset state for a mint, zero meaning SOL.
func (a *Account) AssetStateFor(mint solana.PublicKey) (*AssetState, error) {
	if mint.IsZero() {
		return &a.SOL, nil
	}
	token := a.SupportedTokenFor(mint)
	if token == nil {
		return nil, ErrSupportedTokenNotFound
	}
	return &token.State, nil
}

// OneAssetAsSOL returns (price of one whole asset unit in lamports, asset
// decimals). SOL prices at identity.
func (a *Account) OneAssetAsSOL(mint solana.PublicKey) (uint64, uint8, error) {
	if mint.IsZero() {
		return 1_000_000_000, 9, nil
	}
	token := a.SupportedTokenFor(mint)
	if token == nil {
		return 0, 0, ErrSupportedTokenNotFound
	}
	return token.OneTokenAsSOL, token.Decimals, nil
}

// ReceiptTokensForAssetValue converts a deposit's lamport value into receipt
// tokens at the current price. The bootstrap deposit mints one receipt base
// unit per lamport of value.
func (a *Account) ReceiptTokensForAssetValue(valueAsSOL uint64) (uint64, error) {
	if a.ReceiptTokenSupply == 0 {
		return valueAsSOL, nil
	}
	if a.OneReceiptTokenAsSOL == 0 {
		return 0, ErrStalePrice
	}
	return fundtypes.MulDiv(valueAsSOL, pow10(a.ReceiptTokenDecimals), a.OneReceiptTokenAsSOL)
}

// AssetValueForReceiptTokens converts receipt tokens into lamport value at
// the current price.
func (a *Account) AssetValueForReceiptTokens(receiptTokenAmount uint64) (uint64, error) {
	return fundtypes.MulDiv(receiptTokenAmount, a.OneReceiptTokenAsSOL, pow10(a.ReceiptTokenDecimals))
}

// UpdatePrices recomputes the receipt token value and every supported
// token's cached SOL price from live pricing sources.
func (a *Account) UpdatePrices(price fundtypes.PriceFunc, slot uint64) error {
	numerator := []fundtypes.Asset{fundtypes.SOL(a.totalSOLHoldings())}
	for i := range a.SupportedTokens {
		token := &a.SupportedTokens[i]
		one, _, err := price(token.Pricing)
		if err != nil {
			return err
		}
		token.OneTokenAsSOL = one
		holdings, err := a.tokenHoldings(token)
		if err != nil {
			return err
		}
		if holdings > 0 {
			numerator = append(numerator, fundtypes.Token(token.Mint, token.Pricing, holdings))
		}
	}
	a.ReceiptTokenValue = fundtypes.TokenValue{Numerator: numerator, Denominator: a.ReceiptTokenSupply}
	one, err := a.ReceiptTokenValue.OneAsSOL(func(ref fundtypes.PricingSourceRef) (uint64, uint8, error) {
		for i := range a.SupportedTokens {
			if a.SupportedTokens[i].Pricing == ref {
				return a.SupportedTokens[i].OneTokenAsSOL, a.SupportedTokens[i].Decimals, nil
			}
		}
		return price(ref)
	})
	if err != nil {
		return err
	}
	// One whole receipt token = pow10(decimals) base units.
	one, err = fundtypes.MulDiv(one, pow10(a.ReceiptTokenDecimals), 1)
	if err != nil {
		return err
	}
	if a.ReceiptTokenSupply == 0 {
		// Price resets on full redemption.
		one = 0
	}
	a.OneReceiptTokenAsSOL = one
	a.PriceUpdatedSlot = slot
	return nil
}

func (a *Account) totalSOLHoldings() uint64 {
	total := a.SOL.ReserveAmount + a.SOL.OperationReservedAmount
	return total
}

func (a *Account) tokenHoldings(token *SupportedToken) (uint64, error) {
	total, err := fundtypes.CheckedAdd(token.State.ReserveAmount, token.State.OperationReservedAmount)
	if err != nil {
		return 0, err
	}
	for i := range a.RestakingVaults {
		vault := &a.RestakingVaults[i]
		if !vault.UnderlyingMint.Equals(token.Mint) {
			continue
		}
		// Vault receipts priced 1:1 against the underlying here; the vault's
		// own exchange rate is folded in by the pricing source.
		total, err = fundtypes.CheckedAdd(total, vault.ReceiptBalance)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Burn removes receipt tokens from supply, resetting the cached price when
// the supply fully redeems.
func (a *Account) Burn(receiptTokenAmount uint64) error {
	supply, err := fundtypes.CheckedSub(a.ReceiptTokenSupply, receiptTokenAmount)
	if err != nil {
		return err
	}
	a.ReceiptTokenSupply = supply
	a.ReceiptTokenValue.Denominator = supply
	if supply == 0 {
		a.OneReceiptTokenAsSOL = 0
		a.ReceiptTokenValue = fundtypes.TokenValue{}
	}
	return nil
}

func (a *Account) Mint(receiptTokenAmount uint64) error {
	supply, err := fundtypes.CheckedAdd(a.ReceiptTokenSupply, receiptTokenAmount)
	if err != nil {
		return err
	}
	a.ReceiptTokenSupply = supply
	a.ReceiptTokenValue.Denominator = supply
	return nil
}

// CheckDeposit runs RecordDeposit's capacity and overflow checks without
// mutating the state.
func (s *AssetState) CheckDeposit(amount uint64) error {
	accumulated, err := fundtypes.CheckedAdd(s.AccumulatedDepositAmount, amount)
	if err != nil {
		return err
	}
	if s.DepositCapacityAmount > 0 && accumulated > s.DepositCapacityAmount {
		return ErrExceededDepositCapacity
	}
	_, err = fundtypes.CheckedAdd(s.ReserveAmount, amount)
	return err
}

// RecordDeposit applies deposit-capacity throttling and grows the asset
// reserve.
func (s *AssetState) RecordDeposit(amount uint64) error {
	if err := s.CheckDeposit(amount); err != nil {
		return err
	}
	s.AccumulatedDepositAmount += amount
	s.ReserveAmount += amount
	return nil
}

// NormalReserveTarget is how much of the asset must stay liquid rather than
// deployed.
func (s *AssetState) NormalReserveTarget(totalHoldings uint64) (uint64, error) {
	target, err := fundtypes.MulBps(totalHoldings, s.NormalReserveRateBps)
	if err != nil {
		return 0, err
	}
	if s.NormalReserveMaxAmount > 0 && target > s.NormalReserveMaxAmount {
		target = s.NormalReserveMaxAmount
	}
	return target, nil
}

// AssetUnitsForValue converts a lamport value into base units of an asset
// at its cached price, truncating.
func (a *Account) AssetUnitsForValue(mint solana.PublicKey, valueAsSOL uint64) (uint64, error) {
	one, decimals, err := a.OneAssetAsSOL(mint)
	if err != nil {
		return 0, err
	}
	return fundtypes.MulDiv(valueAsSOL, pow10(decimals), one)
}

// ValueForAssetUnits converts asset base units into lamport value at the
// cached price, truncating.
func (a *Account) ValueForAssetUnits(mint solana.PublicKey, amount uint64) (uint64, error) {
	one, decimals, err := a.OneAssetAsSOL(mint)
	if err != nil {
		return 0, err
	}
	return fundtypes.MulDiv(amount, one, pow10(decimals))
}

// NewTicket registers an in-flight unstake/unrestake claim.
func (a *Account) NewTicket(kind TicketKind, payoutMint, sourceMint solana.PublicKey, amount uint64, now, claimableAt int64) *UnstakeTicket {
	a.NextTicketID++
	a.Tickets = append(a.Tickets, UnstakeTicket{
		ID:          a.NextTicketID,
		Kind:        kind,
		Mint:        payoutMint,
		SourceMint:  sourceMint,
		Amount:      amount,
		CreatedAt:   now,
		ClaimableAt: claimableAt,
	})
	return &a.Tickets[len(a.Tickets)-1]
}

// TicketByID returns the ticket or nil.
func (a *Account) TicketByID(id uint64) *UnstakeTicket {
	for i := range a.Tickets {
		if a.Tickets[i].ID == id {
			return &a.Tickets[i]
		}
	}
	return nil
}

// RemoveTicket drops a claimed ticket.
func (a *Account) RemoveTicket(id uint64) {
	for i := range a.Tickets {
		if a.Tickets[i].ID == id {
			a.Tickets = append(a.Tickets[:i], a.Tickets[i+1:]...)
			return
		}
	}
}

func pow10(d uint8) uint64 {
	out := uint64(1)
	for range d {
		out *= 10
	}
	return out
}
