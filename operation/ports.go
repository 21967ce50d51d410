package operation

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// StakePoolClient is the capability surface of external staking programs
// (SPL stake pool, Marinade, Sanctum single-validator pools).
type StakePoolClient interface {
	// Stake deposits lamports and returns the LST amount received.
	Stake(ctx context.Context, mint solana.PublicKey, lamports uint64) (uint64, error)
	// Unstake burns LST and returns the lamports the resulting ticket will
	// pay once the cooldown passes.
	Unstake(ctx context.Context, mint solana.PublicKey, lstAmount uint64) (uint64, error)
	// ClaimUnstaked redeems a matured unstake ticket for lamports.
	ClaimUnstaked(ctx context.Context, ticketID uint64) (uint64, error)
}

// RestakingVaultClient is the capability surface of restaking vault programs
// (Jito vault style).
type RestakingVaultClient interface {
	// Restake deposits VST into the vault and returns VRT received.
	Restake(ctx context.Context, vault solana.PublicKey, vstAmount uint64) (uint64, error)
	// Unrestake burns VRT and returns the VST amount the resulting ticket
	// will pay after the vault's withdrawal epoch.
	Unrestake(ctx context.Context, vault solana.PublicKey, vrtAmount uint64) (uint64, error)
	// ClaimUnrestaked redeems a matured unrestake ticket for VST.
	ClaimUnrestaked(ctx context.Context, ticketID uint64) (uint64, error)
	Delegate(ctx context.Context, vault, operator solana.PublicKey, amount uint64) error
	Undelegate(ctx context.Context, vault, operator solana.PublicKey, amount uint64) error
	// Harvest pulls accrued reward tokens; returns amount per reward mint.
	Harvest(ctx context.Context, vault solana.PublicKey, rewardMint solana.PublicKey) (uint64, error)
}

// SwapClient is the DEX surface used to convert harvested reward tokens
// into the fund's supported token.
type SwapClient interface {
	Swap(ctx context.Context, inMint, outMint solana.PublicKey, amountIn uint64) (uint64, error)
}

// NormalizedTokenClient mints/burns the basket-backed normalized token.
type NormalizedTokenClient interface {
	// Normalize wraps a supported token amount into normalized tokens.
	Normalize(ctx context.Context, mint solana.PublicKey, amount uint64) (uint64, error)
	// Denormalize burns normalized tokens back into the supported token.
	Denormalize(ctx context.Context, mint solana.PublicKey, ntAmount uint64) (uint64, error)
}
