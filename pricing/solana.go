package pricing

import (
	"context"
	"fmt"
	"log/slog"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/fragmetric-labs/fragmetric-engine/fundtypes"
)

// AccountFetcher is the slice of the Solana RPC client the resolver needs.
type AccountFetcher interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

type RPCSourceConfig struct {
	Logger *slog.Logger
	Client AccountFetcher
}

func (c *RPCSourceConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Client == nil {
		return fmt.Errorf("rpc client is required")
	}
	return nil
}

// RPCSource derives quotes from on-chain program state: SPL and Sanctum
// stake pools and Jito restaking vaults. Marinade is served through an
// override source layered in front.
type RPCSource struct {
	log *slog.Logger
	cfg RPCSourceConfig
}

func NewRPCSource(cfg RPCSourceConfig) (*RPCSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rpc source config: %w", err)
	}
	return &RPCSource{log: cfg.Logger, cfg: cfg}, nil
}

func (s *RPCSource) Resolve(ctx context.Context, ref fundtypes.PricingSourceRef) (Quote, error) {
	switch ref.Kind {
	case fundtypes.PricingSourceNone, fundtypes.PricingSourceOneToOne:
		return Quote{OneTokenAsSOL: 1_000_000_000, Decimals: 9}, nil
	case fundtypes.PricingSourceSPLStakePool, fundtypes.PricingSourceSanctumPool:
		return s.resolveStakePool(ctx, ref.Address)
	case fundtypes.PricingSourceJitoVault:
		return s.resolveJitoVault(ctx, ref.Address)
	default:
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedPricingSource, ref.Kind)
	}
}

func (s *RPCSource) fetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, uint64, error) {
	out, err := s.cfg.Client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("get account %s: %w", address, err)
	}
	if out == nil || out.Value == nil {
		return nil, 0, fmt.Errorf("%w: account %s", ErrQuoteNotFound, address)
	}
	return out.Value.Data.GetBinary(), out.RPCContext.Context.Slot, nil
}

// splStakePool is the prefix of the SPL stake pool account layout up to the
// exchange-rate fields. Sanctum single-validator pools share it.
type splStakePool struct {
	AccountType           uint8
	Manager               solana.PublicKey
	Staker                solana.PublicKey
	StakeDepositAuthority solana.PublicKey
	StakeWithdrawBumpSeed uint8
	ValidatorList         solana.PublicKey
	ReserveStake          solana.PublicKey
	PoolMint              solana.PublicKey
	ManagerFeeAccount     solana.PublicKey
	TokenProgramID        solana.PublicKey
	TotalLamports         uint64
	PoolTokenSupply       uint64
}

func (s *RPCSource) resolveStakePool(ctx context.Context, address solana.PublicKey) (Quote, error) {
	data, slot, err := s.fetchAccount(ctx, address)
	if err != nil {
		return Quote{}, err
	}
	var pool splStakePool
	if err := bin.NewBinDecoder(data).Decode(&pool); err != nil {
		return Quote{}, fmt.Errorf("decode stake pool %s: %w", address, err)
	}
	if pool.PoolTokenSupply == 0 {
		return Quote{}, fmt.Errorf("%w: stake pool %s", ErrZeroSupply, address)
	}
	// Pool tokens carry 9 decimals; one whole token is worth its pro-rata
	// share of the managed lamports.
	one, err := fundtypes.MulDiv(pool.TotalLamports, 1_000_000_000, pool.PoolTokenSupply)
	if err != nil {
		return Quote{}, err
	}
	return Quote{OneTokenAsSOL: one, Decimals: 9, Slot: slot}, nil
}

// jitoVault is the prefix of the Jito restaking vault account layout: an
// 8-byte discriminator followed by the vault config through the VRT
// exchange-rate fields.
type jitoVault struct {
	Discriminator   uint64
	Base            solana.PublicKey
	VRTMint         solana.PublicKey
	SupportedMint   solana.PublicKey
	VRTSupply       uint64
	TokensDeposited uint64
}

func (s *RPCSource) resolveJitoVault(ctx context.Context, address solana.PublicKey) (Quote, error) {
	data, slot, err := s.fetchAccount(ctx, address)
	if err != nil {
		return Quote{}, err
	}
	var vault jitoVault
	if err := bin.NewBinDecoder(data).Decode(&vault); err != nil {
		return Quote{}, fmt.Errorf("decode vault %s: %w", address, err)
	}
	if vault.VRTSupply == 0 {
		return Quote{}, fmt.Errorf("%w: vault %s", ErrZeroSupply, address)
	}
	one, err := fundtypes.MulDiv(vault.TokensDeposited, 1_000_000_000, vault.VRTSupply)
	if err != nil {
		return Quote{}, err
	}
	return Quote{OneTokenAsSOL: one, Decimals: 9, Slot: slot}, nil
}
