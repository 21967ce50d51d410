// Package fundtypes holds the value types shared by the fund, reward and
// operation packages: generic assets, token values and the checked integer
// math every amount mutation goes through.
package fundtypes

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type AssetKind uint8

const (
	AssetKindSOL   AssetKind = 0
	AssetKindToken AssetKind = 1
)

func (k AssetKind) String() string {
	switch k {
	case AssetKindSOL:
		return "sol"
	case AssetKindToken:
		return "token"
	default:
		return "unknown"
	}
}

// PricingSourceKind identifies the external program an asset's SOL price is
// read from.
type PricingSourceKind uint8

const (
	PricingSourceNone         PricingSourceKind = 0
	PricingSourceSPLStakePool PricingSourceKind = 1
	PricingSourceMarinade     PricingSourceKind = 2
	PricingSourceJitoVault    PricingSourceKind = 3
	PricingSourceSanctumPool  PricingSourceKind = 4
	// PricingSourceOneToOne prices the token at exactly one lamport per base
	// unit, used for wrapped SOL and test fixtures.
	PricingSourceOneToOne PricingSourceKind = 5
)

func (k PricingSourceKind) String() string {
	switch k {
	case PricingSourceNone:
		return "none"
	case PricingSourceSPLStakePool:
		return "spl-stake-pool"
	case PricingSourceMarinade:
		return "marinade"
	case PricingSourceJitoVault:
		return "jito-vault"
	case PricingSourceSanctumPool:
		return "sanctum-pool"
	case PricingSourceOneToOne:
		return "one-to-one"
	default:
		return "unknown"
	}
}

// PricingSourceRef points at the account a price is derived from.
type PricingSourceRef struct {
	Kind    PricingSourceKind
	Address solana.PublicKey
}

// Asset is either native SOL or an amount of an SPL token.
type Asset struct {
	Kind          AssetKind
	Mint          solana.PublicKey // zero for SOL
	PricingSource PricingSourceRef
	Amount        uint64
}

func SOL(amount uint64) Asset {
	return Asset{Kind: AssetKindSOL, Amount: amount}
}

func Token(mint solana.PublicKey, pricing PricingSourceRef, amount uint64) Asset {
	return Asset{Kind: AssetKindToken, Mint: mint, PricingSource: pricing, Amount: amount}
}

func (a Asset) IsSOL() bool { return a.Kind == AssetKindSOL }

func (a Asset) String() string {
	if a.IsSOL() {
		return fmt.Sprintf("%d lamports", a.Amount)
	}
	return fmt.Sprintf("%d of %s", a.Amount, a.Mint)
}

// AsSOL prices the asset in lamports. oneTokenAsSOL is the price of one
// whole token (10^decimals base units) in lamports.
func (a Asset) AsSOL(oneTokenAsSOL uint64, decimals uint8) (uint64, error) {
	if a.IsSOL() {
		return a.Amount, nil
	}
	return MulDiv(a.Amount, oneTokenAsSOL, pow10(decimals))
}

func pow10(d uint8) uint64 {
	out := uint64(1)
	for range d {
		out *= 10
	}
	return out
}
