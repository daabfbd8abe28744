package app

import (
	"fmt"

	coreconfig "github.com/m3rciful/travelwallet/core/config"
	"github.com/m3rciful/travelwallet/core/database"
	"github.com/m3rciful/travelwallet/internal/metrics"
	"github.com/m3rciful/travelwallet/internal/rates"
	"github.com/m3rciful/travelwallet/internal/wallet"
)

// Config is the full bot configuration: the shared core sections plus the wallet ones.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Rates    rates.Config    `yaml:"rates"`
	Wallet   wallet.Config   `yaml:"wallet"`
	Metrics  metrics.Config  `yaml:"metrics"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Load reads path, applies .env and environment overrides, then validates every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the sections and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Rates.Normalize(); err != nil {
		return fmt.Errorf("rates: %w", err)
	}
	if err := c.Wallet.Normalize(); err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	c.Metrics.Normalize()
	return nil
}
