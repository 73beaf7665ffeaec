package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/taskdock/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the local database and device identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Initialize(cfg.DataDir)
		if err != nil {
			hint, _ := storage.Remediation(err)
			return fmt.Errorf("%w\n  %s", err, hint)
		}
		defer store.Close()

		slots, err := openSlots()
		if err != nil {
			return err
		}
		deviceID, err := slots.DeviceID()
		if err != nil {
			return err
		}

		fmt.Printf("Initialized %s (device %s)\n", cfg.DataDir, deviceID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
