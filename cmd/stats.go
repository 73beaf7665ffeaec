package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show outbox queue statistics",
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

		stats, err := queue.Stats()
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("pending:  %d\n", stats.Pending)
		fmt.Printf("retrying: %d\n", stats.Retrying)
		if stats.OldestAt != nil {
			fmt.Printf("oldest:   %s (%s ago)\n",
				stats.OldestAt.Format(time.RFC3339), time.Since(*stats.OldestAt).Round(time.Second))
		}
		for entity, n := range stats.ByEntity {
			fmt.Printf("  entity %-9s %d\n", entity, n)
		}
		for op, n := range stats.ByOperation {
			fmt.Printf("  op     %-9s %d\n", op, n)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}
