package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/session"
)

func openManager() (*session.Manager, func(), error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	slots, err := openSlots()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	mgr := session.NewManager(store, slots, cfg.SessionTTL)
	return mgr, func() { store.Close() }, nil
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage authentication sessions on this device",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current user's active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, done, err := openManager()
		if err != nil {
			return err
		}
		defer done()

		current, err := mgr.Current()
		if errors.Is(err, session.ErrNoSession) {
			fmt.Println("no active session")
			return nil
		}
		if err != nil {
			return err
		}

		sessions, err := mgr.List(current.UserID)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			marker := " "
			if s.ID == current.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %-8s device=%s last active %s\n",
				marker, s.ID, s.Provider, s.DeviceID,
				s.LastActive.Format(time.RFC3339))
		}
		return nil
	},
}

var sessionsTerminateCmd = &cobra.Command{
	Use:   "terminate <session-id>",
	Short: "Terminate a non-current session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, done, err := openManager()
		if err != nil {
			return err
		}
		defer done()

		if err := mgr.Terminate(args[0]); err != nil {
			return err
		}
		fmt.Printf("terminated %s\n", args[0])
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Record a session for this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		token, _ := cmd.Flags().GetString("token")
		provider, _ := cmd.Flags().GetString("provider")
		migrateFrom, _ := cmd.Flags().GetString("migrate-from")
		if user == "" || token == "" {
			return fmt.Errorf("--user and --token are required")
		}

		mgr, done, err := openManager()
		if err != nil {
			return err
		}
		defer done()

		sess, err := mgr.Create(user, token, models.Provider(provider), "")
		if err != nil {
			return err
		}
		if migrateFrom != "" {
			if err := mgr.MigrateGuestData(migrateFrom, user); err != nil {
				return fmt.Errorf("guest migration: %w", err)
			}
			fmt.Printf("migrated data from %s\n", migrateFrom)
		}
		fmt.Printf("session %s active (provider %s)\n", sess.ID, sess.Provider)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, done, err := openManager()
		if err != nil {
			return err
		}
		defer done()

		if err := mgr.Logout(); err != nil {
			if errors.Is(err, session.ErrNoSession) {
				fmt.Println("no active session")
				return nil
			}
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("user", "", "user id")
	loginCmd.Flags().String("token", "", "access token")
	loginCmd.Flags().String("provider", string(models.ProviderEmail), "auth provider (email, google, facebook, guest, demo)")
	loginCmd.Flags().String("migrate-from", "", "guest user id whose data should move to this account")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsTerminateCmd)
	rootCmd.AddCommand(sessionsCmd, loginCmd, logoutCmd)
}
