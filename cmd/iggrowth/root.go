package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"iggrowth/pkg/config"
	"iggrowth/pkg/device"
	"iggrowth/pkg/lifecycle"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/scheduler"
	"iggrowth/pkg/store"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	storePath   string
	deviceFlag  string
	dryRun      bool
	batchSize   int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iggrowth",
	Short: "Instagram follow lifecycle automation over ADB",
	Long: `iggrowth tracks target accounts through a follow, check and unfollow
lifecycle and drives the Instagram app on a connected Android device.

Accounts move through the states pending, followed, follows_back or
no_follow_back, and unfollowed. Follows, reciprocation checks and
unfollows run in small batches under daily caps with randomized delays.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .iggrowth.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path of the sqlite account store")
	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "", "android device serial")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "simulate device actions instead of driving a device")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "override the follow batch size")

	rootCmd.SetVersionTemplate(`iggrowth {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig assembles configuration from flags, env and file, then
// initializes the global logger.
func loadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if deviceFlag != "" {
		flags["device"] = deviceFlag
	}
	if storePath != "" {
		flags["store"] = storePath
	}
	if batchSize > 0 {
		flags["batch-size"] = batchSize
	}
	if dryRun {
		flags["dry-run"] = true
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, nil
}

// openStore opens the account store, running migrations when needed.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open account store at %s: %w", cfg.Store.Path, err)
	}
	return st, nil
}

// buildExecutor returns the device executor, simulated when --dry-run is
// set and ADB-backed otherwise.
func buildExecutor(ctx context.Context, cfg *config.Config) (device.Executor, error) {
	if cfg.Device.DryRun {
		logger.Warn("dry run: device actions are simulated, no taps reach a device")
		return device.NewSimulated(), nil
	}
	return device.NewInstagramExecutor(ctx, &cfg.Device)
}

// buildRunner wires the full stack for commands that execute actions.
func buildRunner(ctx context.Context, cfg *config.Config) (*scheduler.Runner, *store.Store, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	exec, err := buildExecutor(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	engine := lifecycle.New(st, cfg.Limits.CheckDelay, cfg.Limits.MaxFollowAttempts)
	return scheduler.New(engine, st, exec, cfg), st, nil
}
