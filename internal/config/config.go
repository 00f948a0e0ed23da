package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level settled.yaml configuration.
type Config struct {
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Ledger         LedgerConfig         `yaml:"ledger"`
	Data           DataConfig           `yaml:"data"`
	Storage        StorageConfig        `yaml:"storage"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ReconciliationConfig controls the matching rules.
type ReconciliationConfig struct {
	SettlementWindowDays int    `yaml:"settlement_window_days"`
	AmountTolerance      string `yaml:"amount_tolerance"` // decimal string, e.g. "0.05"
}

// Tolerance parses the configured amount tolerance.
func (r ReconciliationConfig) Tolerance() (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(r.AmountTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount_tolerance %q: %w", r.AmountTolerance, err)
	}
	if tol.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount_tolerance must not be negative: %s", tol)
	}
	return tol, nil
}

// LedgerConfig maps GL account codes to their reconciliation roles.
type LedgerConfig struct {
	CashAccounts []string `yaml:"cash_accounts"`
	FeeAccounts  []string `yaml:"fee_accounts"`
}

// DataConfig locates input CSVs and report output.
type DataConfig struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
}

// StorageConfig holds the results database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Load reads a settled.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the reconciliation parameters are usable.
func (c *Config) Validate() error {
	if c.Reconciliation.SettlementWindowDays < 0 {
		return fmt.Errorf("settlement_window_days must not be negative: %d", c.Reconciliation.SettlementWindowDays)
	}
	if _, err := c.Reconciliation.Tolerance(); err != nil {
		return err
	}
	return nil
}

// Default returns a Config with the standard reconciliation parameters.
func Default() *Config {
	return &Config{
		Reconciliation: ReconciliationConfig{
			SettlementWindowDays: 5,
			AmountTolerance:      "0.05",
		},
		Ledger: LedgerConfig{
			CashAccounts: []string{"1010"},
			FeeAccounts:  []string{"6050"},
		},
		Data: DataConfig{
			InputDir:  "input",
			OutputDir: "output",
		},
		Storage: StorageConfig{
			DatabasePath: "reconciliation.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
