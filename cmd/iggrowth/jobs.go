package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"iggrowth/pkg/scheduler"
)

// The one-shot job commands run a single batch and exit. Exit status is
// zero only when every attempted action succeeded.

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Follow one batch of pending accounts",
	Long: `Follow one batch of pending accounts and exit.

The batch size and daily follow cap come from configuration. When the
daily cap is already reached nothing is attempted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneJob("follow", func(ctx context.Context, r *scheduler.Runner) (scheduler.Summary, error) {
			return r.RunFollowBatch(ctx)
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve due reciprocation checks",
	Long: `Run every due reciprocation check and exit.

A check that cannot read the relationship off the screen leaves the
account unresolved; it is offered again on the next pass.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneJob("check", func(ctx context.Context, r *scheduler.Runner) (scheduler.Summary, error) {
			return r.RunChecks(ctx)
		})
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow",
	Short: "Unfollow one batch of non-reciprocating accounts",
	Long: `Unfollow one batch of accounts confirmed as not following back
and exit. Bounded by the daily unfollow cap.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneJob("unfollow", func(ctx context.Context, r *scheduler.Runner) (scheduler.Summary, error) {
			return r.RunUnfollowBatch(ctx)
		})
	},
}

func runOneJob(name string, job func(context.Context, *scheduler.Runner) (scheduler.Summary, error)) error {
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

	sum, err := job(ctx, runner)
	if err != nil {
		return fmt.Errorf("%s job: %w", name, err)
	}

	fmt.Printf("%s: attempted %d, succeeded %d, failed %d\n", name, sum.Attempted, sum.Succeeded, sum.Failed)
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d %s actions failed", sum.Failed, sum.Attempted, name)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(unfollowCmd)
}
