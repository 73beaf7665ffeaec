package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcus/taskdock/internal/connectivity"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the connectivity monitor and sync continuously",
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
		queue, client, err := buildQueue(store, slots)
		if err != nil {
			return err
		}

		monitor := connectivity.New(queue, client.Healthy, connectivity.Options{
			ProbeInterval: cfg.ProbeInterval,
			SyncInterval:  cfg.SyncInterval,
		})
		monitor.OnChange(func(online bool) {
			state := "offline"
			if online {
				state = "online"
			}
			fmt.Printf("connectivity: %s\n", state)
		})
		queue.OnSyncCompleted(func(success bool) {
			fmt.Printf("sync completed, success=%v\n", success)
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			cancel()
		}()

		fmt.Printf("watching %s, syncing every %s\n", cfg.ServerURL, cfg.SyncInterval)
		monitor.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
