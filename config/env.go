// Package config carries the per-cluster presets and the operator daemon
// configuration.
package config

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

const (
	EnvMainnetBeta = "mainnet-beta"
	EnvMainnet     = "mainnet"
	EnvTestnet     = "testnet"
	EnvDevnet      = "devnet"
)

var (
	ErrInvalidEnvironment = fmt.Errorf("invalid environment")
)

type NetworkConfig struct {
	Moniker     string
	SolanaRPC   string
	SolanaWSRPC string

	StakePoolProgramID     solana.PublicKey
	JitoRestakingProgramID solana.PublicKey
	JitoVaultProgramID     solana.PublicKey
	MarinadeProgramID      solana.PublicKey
	MarinadeStateID        solana.PublicKey
}

func NetworkConfigForEnv(env string) (*NetworkConfig, error) {
	config := &NetworkConfig{
		StakePoolProgramID:     solana.MustPublicKeyFromBase58(StakePoolProgramID),
		JitoRestakingProgramID: solana.MustPublicKeyFromBase58(JitoRestakingProgramID),
		JitoVaultProgramID:     solana.MustPublicKeyFromBase58(JitoVaultProgramID),
		MarinadeProgramID:      solana.MustPublicKeyFromBase58(MarinadeProgramID),
		MarinadeStateID:        solana.MustPublicKeyFromBase58(MarinadeStateID),
	}
	switch env {
	case EnvMainnetBeta, EnvMainnet:
		config.Moniker = EnvMainnetBeta
		config.SolanaRPC = MainnetSolanaRPC
		config.SolanaWSRPC = MainnetSolanaWSRPC
	case EnvTestnet:
		config.Moniker = EnvTestnet
		config.SolanaRPC = TestnetSolanaRPC
		config.SolanaWSRPC = TestnetSolanaWSRPC
	case EnvDevnet:
		config.Moniker = EnvDevnet
		config.SolanaRPC = DevnetSolanaRPC
		config.SolanaWSRPC = DevnetSolanaWSRPC
	default:
		return nil, fmt.Errorf("%w %q, must be one of: %s, %s, %s", ErrInvalidEnvironment, env, EnvMainnetBeta, EnvTestnet, EnvDevnet)
	}

	rpcURL := os.Getenv("FRAG_SOLANA_RPC_URL")
	if rpcURL != "" {
		config.SolanaRPC = rpcURL
	}
	wsURL := os.Getenv("FRAG_SOLANA_WS_RPC_URL")
	if wsURL != "" {
		config.SolanaWSRPC = wsURL
	}
	return config, nil
}
