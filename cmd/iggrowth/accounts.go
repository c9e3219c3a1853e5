package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"iggrowth/pkg/importer"
	"iggrowth/pkg/lifecycle"
	"iggrowth/pkg/store"
)

var addCmd = &cobra.Command{
	Use:   "add <username>...",
	Short: "Enroll usernames as follow targets",
	Long: `Add one or more usernames to the pending queue. A leading @ is
stripped. Adding an already tracked username is a no-op and never
resets its lifecycle progress.`,
	Example: `  iggrowth add johndoe
  iggrowth add @johndoe janedoe`,
	Args: cobra.MinimumNArgs(1),
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

		engine := lifecycle.New(st, cfg.Limits.CheckDelay, cfg.Limits.MaxFollowAttempts)

		added, existing := 0, 0
		for _, arg := range args {
			username := strings.TrimPrefix(strings.TrimSpace(arg), "@")
			if username == "" {
				continue
			}
			res, err := engine.Enroll(username)
			if err != nil {
				return err
			}
			if res == store.AddCreated {
				added++
			} else {
				existing++
			}
		}
		fmt.Printf("added %d, already tracked %d\n", added, existing)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import follow targets from a text file",
	Long: `Import usernames from a delimited text file.

One username per line. Blank lines and lines starting with # are
skipped, a leading @ is stripped, and a line may carry an explicit
profile link as "username,link".`,
	Example: `  iggrowth import targets.txt`,
	Args: cobra.ExactArgs(1),
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

		sum, err := importer.New(st).ImportFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("imported %d, already tracked %d, skipped %d\n", sum.Added, sum.Existing, sum.Skipped)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <username>",
	Short: "Record a manually verified reciprocation result",
	Long: `Resolve a followed account's reciprocation by hand.

Automated checks capture evidence screenshots but cannot always read
the relationship off the screen. After reviewing the evidence, record
the result here so the lifecycle can move on.`,
	Example: `  # The account followed back
  iggrowth resolve johndoe --follows-back

  # It did not; the account becomes eligible for unfollow
  iggrowth resolve johndoe --follows-back=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("follows-back") {
			return fmt.Errorf("--follows-back must be given explicitly")
		}
		followsBack, err := cmd.Flags().GetBool("follows-back")
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		username := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")
		engine := lifecycle.New(st, cfg.Limits.CheckDelay, cfg.Limits.MaxFollowAttempts)
		if err := engine.RecordCheckResult(username, &followsBack, time.Now()); err != nil {
			return err
		}

		if followsBack {
			fmt.Printf("%s follows back\n", username)
		} else {
			fmt.Printf("%s does not follow back, queued for unfollow\n", username)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all tracked accounts and audit history",
	Long: `Delete every account row and audit entry from the store. This is
the only operation that physically removes data and it cannot be
undone, so it asks for confirmation unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, err := cmd.Flags().GetBool("yes")
		if err != nil {
			return err
		}
		if !yes {
			fmt.Print("This deletes all tracked accounts and history. Type 'yes' to continue: ")
			var answer string
			fmt.Scanln(&answer)
			if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
				fmt.Println("aborted")
				return nil
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Reset(); err != nil {
			return err
		}
		fmt.Println("store reset")
		return nil
	},
}

func init() {
	resolveCmd.Flags().Bool("follows-back", false, "whether the account follows back")
	resetCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(resetCmd)
}
