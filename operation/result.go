package operation

import "github.com/gagliardetto/solana-go"

// Command results record the exact amounts moved in one Step, emitted with
// the operatorRanFundCommand event. Every amount mirrors an accounting
// mutation performed in the same step.

type InitializeCommandResult struct {
	ReserveAsSOL       uint64
	ReceiptTokenSupply uint64
}

type BatchMove struct {
	AssetMint          solana.PublicKey
	BatchID            uint64
	NumRequests        uint32
	ReceiptTokenAmount uint64
}

type EnqueueWithdrawalBatchCommandResult struct {
	Enqueued []BatchMove
}

type ProcessedBatch struct {
	AssetMint          solana.PublicKey
	BatchID            uint64
	ReceiptTokenAmount uint64
	AssetUserAmount    uint64
	AssetFeeAmount     uint64
}

type ProcessWithdrawalBatchCommandResult struct {
	Processed []ProcessedBatch
}

type StakeMove struct {
	Mint      solana.PublicKey
	AmountIn  uint64
	AmountOut uint64
}

type StakeSOLCommandResult struct {
	Staked []StakeMove
}

type UnstakeLSTCommandResult struct {
	Unstaked []StakeMove
}

type ClaimedTicket struct {
	TicketID uint64
	Mint     solana.PublicKey
	Amount   uint64
}

type ClaimUnstakedSOLCommandResult struct {
	Claimed []ClaimedTicket
}

type ClaimUnrestakedVSTCommandResult struct {
	Claimed []ClaimedTicket
}

type VaultMove struct {
	Vault     solana.PublicKey
	AmountIn  uint64
	AmountOut uint64
}

type RestakeVSTCommandResult struct {
	Restaked []VaultMove
}

type UnrestakeVRTCommandResult struct {
	Unrestaked []VaultMove
}

type DelegationMove struct {
	Vault    solana.PublicKey
	Operator solana.PublicKey
	Amount   uint64
}

type DelegateVSTCommandResult struct {
	Delegated []DelegationMove
}

type UndelegateVSTCommandResult struct {
	Undelegated []DelegationMove
}

type NormalizeSTCommandResult struct {
	Normalized []StakeMove
}

type DenormalizeNTCommandResult struct {
	Denormalized []StakeMove
}

type HarvestedReward struct {
	Vault            solana.PublicKey
	RewardMint       solana.PublicKey
	HarvestedAmount  uint64
	SwappedOutAmount uint64
	CommissionAsSOL  uint64
	CompoundedAmount uint64
}

type HarvestRewardCommandResult struct {
	Harvested []HarvestedReward
}
