package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"iggrowth/pkg/logger"
)

// runCmd starts the scheduler loop until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the follow, check and unfollow jobs on their schedules",
	Long: `Run the scheduler until interrupted.

Three jobs share a single worker so device actions never overlap:
  - follow:   follows one batch of pending accounts
  - check:    resolves due reciprocation checks
  - unfollow: unfollows confirmed non-reciprocating accounts

Each job honors its daily cap and pauses a randomized delay between
accounts. Ctrl-C stops the loop; an in-flight delay is cut short.`,
	Example: `  # Run against the configured device
  iggrowth run

  # Exercise the full loop without touching a device
  iggrowth run --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, st, err := buildRunner(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		err = runner.Run(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info("shutting down")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
