package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/taskdock/internal/models"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old outbox items by age and filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		opFlag, _ := cmd.Flags().GetString("op")
		entityFlag, _ := cmd.Flags().GetString("entity")

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

		n, err := queue.Purge(time.Now().Add(-olderThan),
			models.Operation(opFlag), models.Entity(entityFlag))
		if err != nil {
			return err
		}
		fmt.Printf("purged %d queue items\n", n)
		return nil
	},
}

func init() {
	purgeCmd.Flags().Duration("older-than", 30*24*time.Hour, "minimum item age")
	purgeCmd.Flags().String("op", "", "restrict to one operation (create, update, delete)")
	purgeCmd.Flags().String("entity", "", "restrict to one entity (task, project, user, settings)")
	rootCmd.AddCommand(purgeCmd)
}
