package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/fragmetric-labs/fragmetric-engine/config"
)

func validOperatorConfig() *config.OperatorConfig {
	return &config.OperatorConfig{
		ReceiptTokenMint: solana.NewWallet().PublicKey().String(),
		WrapAccount:      solana.NewWallet().PublicKey().String(),
		Admin:            solana.NewWallet().PublicKey().String(),
		FundManager:      solana.NewWallet().PublicKey().String(),
		Operator:         solana.NewWallet().PublicKey().String(),
		SnapshotPath:     "/var/lib/fragmetric/fund.snapshot",
	}
}

func TestConfig_OperatorConfigValidate(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		cfg := validOperatorConfig()
		require.NoError(t, cfg.Validate())
		require.Equal(t, config.EnvDevnet, cfg.Environment)
		require.Equal(t, ":2112", cfg.MetricsAddr)
		require.Equal(t, 5*time.Second, cfg.StepInterval)
		require.Equal(t, 30*time.Second, cfg.PriceRefreshInterval)
		require.Equal(t, int64(3600), cfg.BatchThresholdSeconds)
		require.Equal(t, int64(2*24*3600), cfg.CooldownSeconds)
		require.Equal(t, 4, cfg.MaxItemsPerStep)
	})

	t.Run("explicit values kept", func(t *testing.T) {
		cfg := validOperatorConfig()
		cfg.Environment = config.EnvTestnet
		cfg.MetricsAddr = ":9100"
		cfg.StepInterval = time.Second
		require.NoError(t, cfg.Validate())
		require.Equal(t, config.EnvTestnet, cfg.Environment)
		require.Equal(t, ":9100", cfg.MetricsAddr)
		require.Equal(t, time.Second, cfg.StepInterval)
	})

	t.Run("missing receipt token mint", func(t *testing.T) {
		cfg := validOperatorConfig()
		cfg.ReceiptTokenMint = ""
		require.ErrorContains(t, cfg.Validate(), "receipt_token_mint is required")
	})

	t.Run("invalid authority pubkey", func(t *testing.T) {
		cfg := validOperatorConfig()
		cfg.Admin = "not-a-pubkey"
		require.ErrorContains(t, cfg.Validate(), "admin")
	})

	t.Run("missing snapshot path", func(t *testing.T) {
		cfg := validOperatorConfig()
		cfg.SnapshotPath = ""
		require.ErrorContains(t, cfg.Validate(), "snapshot_path is required")
	})

	t.Run("deposit signer", func(t *testing.T) {
		cfg := validOperatorConfig()
		cfg.DepositSigner = solana.NewWallet().PublicKey().String()
		require.NoError(t, cfg.Validate())
		require.Len(t, cfg.DepositSignerKey(), 32)

		cfg.DepositSigner = "abc"
		require.ErrorContains(t, cfg.Validate(), "deposit_signer")

		cfg.DepositSigner = ""
		require.NoError(t, cfg.Validate())
		require.Nil(t, cfg.DepositSignerKey())
	})
}

func TestConfig_LoadOperatorConfig(t *testing.T) {
	writeConfig := func(t *testing.T, contents string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "operator.yml")
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
		return path
	}

	t.Run("loads yaml with defaults", func(t *testing.T) {
		base := validOperatorConfig()
		path := writeConfig(t, `
environment: testnet
receipt_token_mint: `+base.ReceiptTokenMint+`
wrap_account: `+base.WrapAccount+`
admin: `+base.Admin+`
fund_manager: `+base.FundManager+`
operator: `+base.Operator+`
snapshot_path: /tmp/fund.snapshot
step_interval: 10s
`)
		cfg, err := config.LoadOperatorConfig(path)
		require.NoError(t, err)
		require.Equal(t, config.EnvTestnet, cfg.Environment)
		require.Equal(t, base.ReceiptTokenMint, cfg.ReceiptTokenMint)
		require.Equal(t, 10*time.Second, cfg.StepInterval)
		require.Equal(t, ":2112", cfg.MetricsAddr)
	})

	t.Run("environment override from env var", func(t *testing.T) {
		base := validOperatorConfig()
		path := writeConfig(t, `
environment: devnet
receipt_token_mint: `+base.ReceiptTokenMint+`
wrap_account: `+base.WrapAccount+`
admin: `+base.Admin+`
fund_manager: `+base.FundManager+`
operator: `+base.Operator+`
snapshot_path: /tmp/fund.snapshot
`)
		t.Setenv("FRAG_ENV", config.EnvMainnetBeta)
		cfg, err := config.LoadOperatorConfig(path)
		require.NoError(t, err)
		require.Equal(t, config.EnvMainnetBeta, cfg.Environment)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadOperatorConfig(filepath.Join(t.TempDir(), "missing.yml"))
		require.ErrorContains(t, err, "read config")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "environment: [unterminated")
		_, err := config.LoadOperatorConfig(path)
		require.ErrorContains(t, err, "parse config")
	})

	t.Run("invalid contents", func(t *testing.T) {
		path := writeConfig(t, "environment: devnet\n")
		_, err := config.LoadOperatorConfig(path)
		require.ErrorContains(t, err, "invalid config")
	})
}
