package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Limits.FollowBatchSize)
	assert.Equal(t, 100, cfg.Limits.MaxFollowsPerDay)
	assert.Equal(t, 50, cfg.Limits.MaxUnfollowsPerDay)
	assert.Equal(t, 30*time.Second, cfg.Limits.MinActionDelay)
	assert.Equal(t, 120*time.Second, cfg.Limits.MaxActionDelay)
	assert.Equal(t, 24*time.Hour, cfg.Limits.CheckDelay)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.FollowInterval)
	assert.Equal(t, time.Hour, cfg.Scheduler.CheckInterval)
	assert.Equal(t, 2*time.Hour, cfg.Scheduler.UnfollowInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"zero batch size", func(c *Config) { c.Limits.FollowBatchSize = 0 }},
		{"negative follows cap", func(c *Config) { c.Limits.MaxFollowsPerDay = -1 }},
		{"delay bounds inverted", func(c *Config) {
			c.Limits.MinActionDelay = 2 * time.Minute
			c.Limits.MaxActionDelay = time.Minute
		}},
		{"zero check delay", func(c *Config) { c.Limits.CheckDelay = 0 }},
		{"zero follow attempts", func(c *Config) { c.Limits.MaxFollowAttempts = 0 }},
		{"zero tick", func(c *Config) { c.Scheduler.Tick = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGGROWTH_DEVICE_SERIAL", "emulator-5554")
	t.Setenv("IGGROWTH_MAX_FOLLOWS_PER_DAY", "42")
	t.Setenv("IGGROWTH_CHECK_DELAY", "12h")
	t.Setenv("IGGROWTH_DRY_RUN", "true")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "emulator-5554", cfg.Device.Serial)
	assert.Equal(t, 42, cfg.Limits.MaxFollowsPerDay)
	assert.Equal(t, 12*time.Hour, cfg.Limits.CheckDelay)
	assert.True(t, cfg.Device.DryRun)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
store:
  path: /tmp/growth.db
limits:
  follow_batch_size: 3
  check_delay: 6h
scheduler:
  follow_interval: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "/tmp/growth.db", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Limits.FollowBatchSize)
	assert.Equal(t, 6*time.Hour, cfg.Limits.CheckDelay)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.FollowInterval)
	// Untouched values keep their defaults.
	assert.Equal(t, 100, cfg.Limits.MaxFollowsPerDay)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "config.yaml")

	cfg := DefaultConfig()
	cfg.Device.Serial = "abc123"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "abc123", loaded.Device.Serial)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"device":     "serial-1",
		"store":      "/tmp/other.db",
		"batch-size": 7,
		"dry-run":    true,
		"log-level":  "debug",
	})

	assert.Equal(t, "serial-1", cfg.Device.Serial)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, 7, cfg.Limits.FollowBatchSize)
	assert.True(t, cfg.Device.DryRun)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
