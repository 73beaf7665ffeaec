package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the outbox once",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		slots, err := openSlots()
		if err != nil {
			return err
		}
		queue, _, err := buildQueue(store, slots)
		if err != nil {
			return err
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			queue.OnSyncProgress(func(current, total int) {
				fmt.Printf("\rsyncing %d/%d", current, total)
			})
		}
		queue.OnReauthRequired(func() {
			fmt.Fprintln(cmd.ErrOrStderr(), "\ncredentials rejected; log in again")
		})

		res, err := queue.Drain(context.Background())
		if err != nil {
			return err
		}
		if res.InProgress {
			fmt.Println("sync already in progress")
			return nil
		}
		if !quiet {
			fmt.Println()
		}
		fmt.Printf("processed %d, failed %d, success=%v\n", res.Processed, res.Failed, res.Success)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.AddCommand(syncCmd)
}
