package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"iggrowth/pkg/account"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show lifecycle statistics",
	Long: `Show how many accounts sit in each lifecycle state, today's
follow and unfollow counts against their daily caps, and the overall
follow-back rate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Statistics(time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("tracked accounts: %d\n", stats.Total)
		for _, state := range []account.State{
			account.StatePending,
			account.StateFollowed,
			account.StateFollowsBack,
			account.StateNoFollowBack,
			account.StateUnfollowed,
		} {
			fmt.Printf("  %-15s %d\n", state, stats.ByState[state])
		}
		fmt.Printf("follows today:    %d / %d\n", stats.FollowsToday, cfg.Limits.MaxFollowsPerDay)
		fmt.Printf("unfollows today:  %d / %d\n", stats.UnfollowsToday, cfg.Limits.MaxUnfollowsPerDay)
		fmt.Printf("follow-back rate: %.1f%%\n", stats.FollowBackRate*100)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
