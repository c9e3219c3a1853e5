package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the growth automation tool
type Config struct {
	// Device connection settings
	Device DeviceConfig `yaml:"device" json:"device"`

	// Account store settings
	Store StoreConfig `yaml:"store" json:"store"`

	// Batch sizes, daily caps and delays
	Limits LimitsConfig `yaml:"limits" json:"limits"`

	// Scheduler job cadences
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`

	// Retry behaviour for device actions
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DeviceConfig holds the Android debug bridge session settings
type DeviceConfig struct {
	Serial         string        `yaml:"serial" json:"serial"`
	ADBPath        string        `yaml:"adb_path" json:"adb_path"`
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout"`
	EvidenceDir    string        `yaml:"evidence_dir" json:"evidence_dir"`
	// DryRun swaps the real device executor for the simulated one.
	DryRun bool `yaml:"dry_run" json:"dry_run"`
}

// StoreConfig holds persistence settings
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LimitsConfig holds batch sizes, daily caps and inter-action delay bounds
type LimitsConfig struct {
	FollowBatchSize    int           `yaml:"follow_batch_size" json:"follow_batch_size"`
	UnfollowBatchSize  int           `yaml:"unfollow_batch_size" json:"unfollow_batch_size"`
	MaxFollowsPerDay   int           `yaml:"max_follows_per_day" json:"max_follows_per_day"`
	MaxUnfollowsPerDay int           `yaml:"max_unfollows_per_day" json:"max_unfollows_per_day"`
	MinActionDelay     time.Duration `yaml:"min_action_delay" json:"min_action_delay"`
	MaxActionDelay     time.Duration `yaml:"max_action_delay" json:"max_action_delay"`
	ActionsPerHour     int           `yaml:"actions_per_hour" json:"actions_per_hour"`
	CheckDelay         time.Duration `yaml:"check_delay" json:"check_delay"`
	// MaxFollowAttempts bounds how often a pending account is re-offered
	// after failed follow attempts before it is parked.
	MaxFollowAttempts int `yaml:"max_follow_attempts" json:"max_follow_attempts"`
}

// SchedulerConfig holds per-job cadences and the wakeup tick
type SchedulerConfig struct {
	FollowInterval   time.Duration `yaml:"follow_interval" json:"follow_interval"`
	CheckInterval    time.Duration `yaml:"check_interval" json:"check_interval"`
	UnfollowInterval time.Duration `yaml:"unfollow_interval" json:"unfollow_interval"`
	Tick             time.Duration `yaml:"tick" json:"tick"`
}

// RetryConfig holds bounded retry settings for device actions
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the documented defaults
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ADBPath:        "adb",
			CommandTimeout: 30 * time.Second,
			EvidenceDir:    "./evidence",
		},
		Store: StoreConfig{
			Path: "./iggrowth.db",
		},
		Limits: LimitsConfig{
			FollowBatchSize:    5,
			UnfollowBatchSize:  5,
			MaxFollowsPerDay:   100,
			MaxUnfollowsPerDay: 50,
			MinActionDelay:     30 * time.Second,
			MaxActionDelay:     120 * time.Second,
			ActionsPerHour:     20,
			CheckDelay:         24 * time.Hour,
			MaxFollowAttempts:  5,
		},
		Scheduler: SchedulerConfig{
			FollowInterval:   5 * time.Minute,
			CheckInterval:    time.Hour,
			UnfollowInterval: 2 * time.Hour,
			Tick:             time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if serial := os.Getenv("IGGROWTH_DEVICE_SERIAL"); serial != "" {
		c.Device.Serial = serial
	}
	if adbPath := os.Getenv("IGGROWTH_ADB_PATH"); adbPath != "" {
		c.Device.ADBPath = adbPath
	}
	if storePath := os.Getenv("IGGROWTH_STORE_PATH"); storePath != "" {
		c.Store.Path = storePath
	}

	if batch := os.Getenv("IGGROWTH_FOLLOW_BATCH_SIZE"); batch != "" {
		var val int
		fmt.Sscanf(batch, "%d", &val)
		if val > 0 {
			c.Limits.FollowBatchSize = val
		}
	}
	if cap := os.Getenv("IGGROWTH_MAX_FOLLOWS_PER_DAY"); cap != "" {
		var val int
		fmt.Sscanf(cap, "%d", &val)
		if val > 0 {
			c.Limits.MaxFollowsPerDay = val
		}
	}
	if cap := os.Getenv("IGGROWTH_MAX_UNFOLLOWS_PER_DAY"); cap != "" {
		var val int
		fmt.Sscanf(cap, "%d", &val)
		if val > 0 {
			c.Limits.MaxUnfollowsPerDay = val
		}
	}
	if delay := os.Getenv("IGGROWTH_CHECK_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			c.Limits.CheckDelay = d
		}
	}
	if dryRun := os.Getenv("IGGROWTH_DRY_RUN"); dryRun != "" {
		c.Device.DryRun = strings.ToLower(dryRun) == "true"
	}
	if logLevel := os.Getenv("IGGROWTH_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".iggrowth.yaml",
		".iggrowth.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "iggrowth", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "iggrowth", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".iggrowth.yaml"),
		filepath.Join(os.Getenv("HOME"), ".iggrowth.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}
	if c.Device.ADBPath == "" && !c.Device.DryRun {
		errs = append(errs, errors.New("adb path is required unless dry_run is set"))
	}
	if c.Device.CommandTimeout <= 0 {
		errs = append(errs, errors.New("device command timeout must be positive"))
	}

	if c.Limits.FollowBatchSize <= 0 {
		errs = append(errs, errors.New("follow batch size must be positive"))
	}
	if c.Limits.UnfollowBatchSize <= 0 {
		errs = append(errs, errors.New("unfollow batch size must be positive"))
	}
	if c.Limits.MaxFollowsPerDay <= 0 {
		errs = append(errs, errors.New("max follows per day must be positive"))
	}
	if c.Limits.MaxUnfollowsPerDay <= 0 {
		errs = append(errs, errors.New("max unfollows per day must be positive"))
	}
	if c.Limits.MinActionDelay < 0 {
		errs = append(errs, errors.New("min action delay cannot be negative"))
	}
	if c.Limits.MaxActionDelay < c.Limits.MinActionDelay {
		errs = append(errs, errors.New("max action delay must be >= min action delay"))
	}
	if c.Limits.CheckDelay <= 0 {
		errs = append(errs, errors.New("check delay must be positive"))
	}
	if c.Limits.ActionsPerHour <= 0 {
		errs = append(errs, errors.New("actions per hour must be positive"))
	}
	if c.Limits.MaxFollowAttempts <= 0 {
		errs = append(errs, errors.New("max follow attempts must be positive"))
	}

	if c.Scheduler.FollowInterval <= 0 || c.Scheduler.CheckInterval <= 0 || c.Scheduler.UnfollowInterval <= 0 {
		errs = append(errs, errors.New("job intervals must be positive"))
	}
	if c.Scheduler.Tick <= 0 {
		errs = append(errs, errors.New("scheduler tick must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if serial, ok := flags["device"].(string); ok && serial != "" {
		c.Device.Serial = serial
	}
	if storePath, ok := flags["store"].(string); ok && storePath != "" {
		c.Store.Path = storePath
	}
	if batch, ok := flags["batch-size"].(int); ok && batch > 0 {
		c.Limits.FollowBatchSize = batch
	}
	if dryRun, ok := flags["dry-run"].(bool); ok && dryRun {
		c.Device.DryRun = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".iggrowth.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
