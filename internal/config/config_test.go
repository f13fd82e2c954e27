package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/coin-ledger/internal/hashing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/pebble", cfg.Pebble.Path)
	assert.Equal(t, hashing.SHA256, cfg.Ledger.Hash)
	assert.Equal(t, int64(1), cfg.Coin.MinimumFee)
	assert.Equal(t, int64(0), cfg.Coin.MaximumFee)
	assert.Equal(t, int64(50), cfg.Coin.MiningReward)
	assert.True(t, cfg.Audit.Enabled)
	assert.Zero(t, cfg.Audit.Interval)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
ledger:
  hash: blake2b
coin:
  minimum_fee: 2
  maximum_fee: 20
  mining_reward: 25
log:
  level: debug
audit:
  interval: 1h
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("COIN_MINING_REWARD", "40")
	t.Setenv("PEBBLE_PATH", "/tmp/ledger")
	t.Setenv("AUDIT_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/tmp/ledger", cfg.Pebble.Path)
	assert.Equal(t, hashing.Blake2b, cfg.Ledger.Hash)
	assert.Equal(t, int64(2), cfg.Coin.MinimumFee)
	assert.Equal(t, int64(20), cfg.Coin.MaximumFee)
	assert.Equal(t, int64(40), cfg.Coin.MiningReward)
	assert.Equal(t, logrus.DebugLevel, cfg.NewLogger().GetLevel())
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, time.Hour, cfg.Audit.Interval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [1"},
		{"unknown hash", "ledger:\n  hash: md5\n"},
		{"fee bounds", "coin:\n  minimum_fee: 5\n  maximum_fee: 2\n"},
		{"negative reward", "coin:\n  mining_reward: -1\n"},
		{"log level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
