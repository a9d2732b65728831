package pilive

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config wires a coordinator to one device relay. Token is read from the
// environment variable named by TokenEnv so config files never carry
// credentials.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	TokenEnv        string        `yaml:"token_env"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	TransferTimeout time.Duration `yaml:"transfer_timeout"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	Log             LogConfig     `yaml:"log"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func DefaultConfig() *Config {
	return &Config{
		TokenEnv:        "PILIVE_TOKEN",
		PollInterval:    DefaultPollInterval,
		PollTimeout:     DefaultPollTimeout,
		TransferTimeout: DefaultTransferTimeout,
		SettleDelay:     DefaultSettleDelay,
		Log: LogConfig{
			File:       "pilive.log",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 3,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.TokenEnv == "" {
		return errors.New("token_env is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.PollTimeout <= 0 {
		return errors.New("poll_timeout must be positive")
	}
	if c.TransferTimeout < c.PollTimeout {
		return errors.New("transfer_timeout must be at least poll_timeout")
	}
	if c.SettleDelay < 0 {
		return errors.New("settle_delay must not be negative")
	}
	return nil
}
