package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// OperatorConfig is the fund-operator daemon configuration, loaded from a
// YAML file with env-var overrides layered on top.
type OperatorConfig struct {
	Environment string `yaml:"environment"`

	ReceiptTokenMint string `yaml:"receipt_token_mint"`
	WrapAccount      string `yaml:"wrap_account"`

	Admin       string `yaml:"admin"`
	FundManager string `yaml:"fund_manager"`
	Operator    string `yaml:"operator"`
	// DepositSigner is the base58-encoded ed25519 public key of the deposit
	// voucher service, empty to disable metadata verification.
	DepositSigner string `yaml:"deposit_signer"`

	SnapshotPath string `yaml:"snapshot_path"`
	MetricsAddr  string `yaml:"metrics_addr"`

	StepInterval          time.Duration `yaml:"step_interval"`
	PriceRefreshInterval  time.Duration `yaml:"price_refresh_interval"`
	BatchThresholdSeconds int64         `yaml:"batch_threshold_seconds"`
	CooldownSeconds       int64         `yaml:"cooldown_seconds"`
	MaxItemsPerStep       int           `yaml:"max_items_per_step"`
}

func (c *OperatorConfig) Validate() error {
	if c.Environment == "" {
		c.Environment = EnvDevnet
	}
	if c.ReceiptTokenMint == "" {
		return fmt.Errorf("receipt_token_mint is required")
	}
	if _, err := solana.PublicKeyFromBase58(c.ReceiptTokenMint); err != nil {
		return fmt.Errorf("invalid receipt_token_mint: %w", err)
	}
	for name, value := range map[string]string{
		"wrap_account": c.WrapAccount,
		"admin":        c.Admin,
		"fund_manager": c.FundManager,
		"operator":     c.Operator,
	} {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.DepositSigner != "" {
		key, err := base58.Decode(c.DepositSigner)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("invalid deposit_signer: must be a base58 ed25519 public key")
		}
	}
	if c.SnapshotPath == "" {
		return fmt.Errorf("snapshot_path is required")
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":2112"
	}
	if c.StepInterval <= 0 {
		c.StepInterval = 5 * time.Second
	}
	if c.PriceRefreshInterval <= 0 {
		c.PriceRefreshInterval = 30 * time.Second
	}
	if c.BatchThresholdSeconds <= 0 {
		c.BatchThresholdSeconds = 3600
	}
	if c.CooldownSeconds <= 0 {
		c.CooldownSeconds = 2 * 24 * 3600
	}
	if c.MaxItemsPerStep <= 0 {
		c.MaxItemsPerStep = 4
	}
	return nil
}

// LoadOperatorConfig reads the YAML config at path. A .env file alongside
// the process, if present, is loaded first so env-var overrides like
// FRAG_SOLANA_RPC_URL take effect.
func LoadOperatorConfig(path string) (*OperatorConfig, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &OperatorConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if env := os.Getenv("FRAG_ENV"); env != "" {
		cfg.Environment = env
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DepositSignerKey decodes the configured deposit signer public key, nil
// when verification is disabled.
func (c *OperatorConfig) DepositSignerKey() []byte {
	if c.DepositSigner == "" {
		return nil
	}
	key, err := base58.Decode(c.DepositSigner)
	if err != nil {
		return nil
	}
	return key
}
