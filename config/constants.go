package config

const (
	// Program IDs shared across clusters.
	StakePoolProgramID     = "SPoo1Ku8WFXoNDMHPsrGSTSG1Y47rzgn41SLUNakuHy"
	JitoRestakingProgramID = "RestkWeAVL8fRGgzhfeoqFhsqKRchg6aa1XrcH96z4Q"
	JitoVaultProgramID     = "Vau1t6sLNxnzB7ZDsef8TLbPLfyZMYXH8WTNqUdm9g8"
	MarinadeProgramID      = "MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD"
	MarinadeStateID        = "8szGkuLTAux9XMgZ2vtY39jVSowEcpBfFfD8hXSEqdGC"

	// Mainnet constants.
	MainnetSolanaRPC   = "https://api.mainnet-beta.solana.com"
	MainnetSolanaWSRPC = "wss://api.mainnet-beta.solana.com"

	// Testnet constants.
	TestnetSolanaRPC   = "https://api.testnet.solana.com"
	TestnetSolanaWSRPC = "wss://api.testnet.solana.com"

	// Devnet constants.
	DevnetSolanaRPC   = "https://api.devnet.solana.com"
	DevnetSolanaWSRPC = "wss://api.devnet.solana.com"
)
