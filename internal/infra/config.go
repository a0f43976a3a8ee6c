// Package infra holds configuration loading and logging.
package infra

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ctubio/tribeca/internal/domain"
)

// Config is the full application configuration. Deployment-specific values
// can be overridden through environment variables after load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Exchange struct {
		Name                string              `yaml:"name"`
		Pair                domain.CurrencyPair `yaml:"pair"`
		TickSize            decimal.Decimal     `yaml:"tick_size"`
		MinSize             decimal.Decimal     `yaml:"min_size"`
		MakeFee             decimal.Decimal     `yaml:"make_fee"`
		TakeFee             decimal.Decimal     `yaml:"take_fee"`
		SelfTradePrevention bool                `yaml:"self_trade_prevention"`
	} `yaml:"exchange"`

	Sim struct {
		InitialPrice           decimal.Decimal   `yaml:"initial_price"`
		Balances               map[string]string `yaml:"balances"`
		PositionPollIntervalMS int               `yaml:"position_poll_interval_ms"`
		BookIntervalMS         int               `yaml:"book_interval_ms"`
	} `yaml:"sim"`

	Quoting struct {
		Mode             string          `yaml:"mode"`
		PongAt           string          `yaml:"pong_at"`
		WidthPong        decimal.Decimal `yaml:"width_pong"`
		CancelOrdersAuto bool            `yaml:"cancel_orders_auto"`
	} `yaml:"quoting"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Transport struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"transport"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Exchange.Name == "" {
		return fmt.Errorf("exchange name is required")
	}
	if c.Exchange.Pair.Base == "" || c.Exchange.Pair.Quote == "" {
		return fmt.Errorf("exchange pair must name base and quote currencies")
	}
	if !c.Exchange.TickSize.IsPositive() {
		return fmt.Errorf("tick size must be positive")
	}
	if !c.Exchange.MinSize.IsPositive() {
		return fmt.Errorf("min size must be positive")
	}
	if c.Exchange.MakeFee.IsNegative() || c.Exchange.TakeFee.IsNegative() {
		return fmt.Errorf("fees must be non-negative")
	}
	if c.Quoting.WidthPong.IsNegative() {
		return fmt.Errorf("width pong must be non-negative")
	}
	if c.Sim.PositionPollIntervalMS <= 0 {
		return fmt.Errorf("position poll interval must be positive")
	}
	if c.Transport.ListenAddr == "" {
		return fmt.Errorf("transport listen address is required")
	}
	return nil
}

// PositionPollInterval returns the sim position cadence as a duration.
func (c *Config) PositionPollInterval() time.Duration {
	return time.Duration(c.Sim.PositionPollIntervalMS) * time.Millisecond
}

// BookInterval returns the synthetic book cadence as a duration.
func (c *Config) BookInterval() time.Duration {
	return time.Duration(c.Sim.BookIntervalMS) * time.Millisecond
}

func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("TRIBECA_LISTEN_ADDR"); addr != "" {
		cfg.Transport.ListenAddr = addr
	}
	if path := os.Getenv("TRIBECA_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("TRIBECA_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
