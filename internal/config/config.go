package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/thanhnp/coin-ledger/internal/hashing"
	"github.com/thanhnp/coin-ledger/internal/models"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig        `yaml:"server"`
	Pebble PebbleConfig        `yaml:"pebble"`
	Ledger LedgerConfig        `yaml:"ledger"`
	Coin   models.CoinSettings `yaml:"coin"`
	Log    LogConfig           `yaml:"log"`
	Audit  AuditConfig         `yaml:"audit"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// PebbleConfig represents the Pebble database configuration
type PebbleConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig selects how blocks are hashed and when the genesis block
// is dated
type LedgerConfig struct {
	Hash             string `yaml:"hash"`
	GenesisTimestamp int64  `yaml:"genesis_timestamp"`
}

// AuditConfig controls replaying the stored log to check its integrity
type AuditConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// LogConfig represents the logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from a YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Pebble: PebbleConfig{
			Path: "./data/pebble",
		},
		Ledger: LedgerConfig{
			Hash:             hashing.SHA256,
			GenesisTimestamp: 1465154705,
		},
		Coin: models.DefaultCoinSettings(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled: true,
		},
	}

	// Load from YAML file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadEnv() {
	// Server config
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}

	// Pebble config
	if path := os.Getenv("PEBBLE_PATH"); path != "" {
		c.Pebble.Path = path
	}

	// Ledger config
	if hash := os.Getenv("LEDGER_HASH"); hash != "" {
		c.Ledger.Hash = hash
	}

	// Coin config
	loadInt64Env("COIN_MINIMUM_FEE", &c.Coin.MinimumFee)
	loadInt64Env("COIN_MAXIMUM_FEE", &c.Coin.MaximumFee)
	loadInt64Env("COIN_MINING_REWARD", &c.Coin.MiningReward)

	// Audit config
	if enabled := os.Getenv("AUDIT_ENABLED"); enabled != "" {
		c.Audit.Enabled = enabled == "true" || enabled == "1"
	}
	if interval := os.Getenv("AUDIT_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Audit.Interval = d
		}
	}

	// Log config
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func loadInt64Env(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

// Validate rejects settings the ledger cannot run with
func (c *Config) Validate() error {
	if _, err := hashing.New(c.Ledger.Hash); err != nil {
		return fmt.Errorf("invalid ledger hash: %w", err)
	}
	if c.Coin.MinimumFee < 0 {
		return fmt.Errorf("invalid coin settings: minimum fee %d is negative", c.Coin.MinimumFee)
	}
	if c.Coin.MaximumFee != 0 && c.Coin.MaximumFee < c.Coin.MinimumFee {
		return fmt.Errorf("invalid coin settings: maximum fee %d is below minimum fee %d", c.Coin.MaximumFee, c.Coin.MinimumFee)
	}
	if c.Coin.MiningReward < 0 {
		return fmt.Errorf("invalid coin settings: mining reward %d is negative", c.Coin.MiningReward)
	}
	if c.Audit.Interval < 0 {
		return fmt.Errorf("invalid audit interval %s", c.Audit.Interval)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger from the log settings
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
