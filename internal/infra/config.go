package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Secrets can be
// overridden via environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Orders struct {
		UnitPriceUSD     decimal.Decimal `yaml:"unit_price_usd"`
		CheckIntervalSec int             `yaml:"check_interval_sec"`
		TTLHours         int             `yaml:"ttl_hours"`
		MaxParallel      int             `yaml:"max_parallel"`
		CallTimeoutSec   int             `yaml:"call_timeout_sec"`
	} `yaml:"orders"`

	Wallet struct {
		Seed         string `yaml:"seed"`
		MerchantAddr string `yaml:"merchant_addr"`
	} `yaml:"wallet"`

	API struct {
		Rates struct {
			URL             string `yaml:"url"`
			PollIntervalSec int    `yaml:"poll_interval_sec"`
		} `yaml:"rates"`
		Fulcrum struct {
			WSURL string `yaml:"ws_url"`
		} `yaml:"fulcrum"`
		Consumer struct {
			RestURL string `yaml:"rest_url"`
		} `yaml:"consumer"`
	} `yaml:"api"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Sensitive values come from the environment when present
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Orders.UnitPriceUSD.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("unit price must be positive, got %s", c.Orders.UnitPriceUSD)
	}
	if c.Orders.CheckIntervalSec <= 0 {
		return fmt.Errorf("order check interval must be positive")
	}
	if c.Orders.TTLHours < 0 {
		return fmt.Errorf("order ttl must not be negative")
	}

	if c.Wallet.Seed == "" {
		return fmt.Errorf("wallet seed is required")
	}
	if !strings.HasPrefix(c.Wallet.MerchantAddr, "bitcoincash:") {
		return fmt.Errorf("invalid merchant address: %s", c.Wallet.MerchantAddr)
	}

	if !strings.HasPrefix(c.API.Fulcrum.WSURL, "ws://") && !strings.HasPrefix(c.API.Fulcrum.WSURL, "wss://") {
		return fmt.Errorf("invalid Fulcrum WS URL: %s", c.API.Fulcrum.WSURL)
	}
	if c.API.Consumer.RestURL == "" {
		return fmt.Errorf("wallet consumer API URL is required")
	}

	return nil
}

// overrideWithEnv overwrites config values from environment variables when set.
func overrideWithEnv(cfg *Config) {
	if seed := os.Getenv("MERCHANT_WALLET_SEED"); seed != "" {
		cfg.Wallet.Seed = seed
	}
	if addr := os.Getenv("MERCHANT_ADDR"); addr != "" {
		cfg.Wallet.MerchantAddr = addr
	}
}
