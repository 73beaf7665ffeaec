// Package cmd is the taskdock CLI: a thin shell over the offline-first
// core for inspecting and driving the local store, outbox, and sessions.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/marcus/taskdock/internal/config"
	"github.com/marcus/taskdock/internal/outbox"
	"github.com/marcus/taskdock/internal/remote"
	"github.com/marcus/taskdock/internal/session"
	"github.com/marcus/taskdock/internal/storage"
)

var (
	version string
	cfgFile string
	dataDir string

	cfg *config.Config
)

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "taskdock",
	Short: "Offline-first task store with outbox sync",
	Long: `taskdock - local transactional store for tasks, projects and settings,
with an outbox queue that reconciles changes against a remote service
once connectivity returns.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/taskdock/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory override")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
}

func initLogging() {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.DataDir, "taskdock.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})))
}

// openStore opens the database, translating classified failures into
// actionable guidance instead of a bare error string.
func openStore() (*storage.Store, error) {
	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		hint, retryable := storage.Remediation(err)
		if retryable {
			return nil, fmt.Errorf("%w\n  %s (then retry; no reinitialization needed)", err, hint)
		}
		return nil, fmt.Errorf("%w\n  %s", err, hint)
	}
	return store, nil
}

func openSlots() (*session.Slots, error) {
	return session.NewSlots(cfg.DataDir)
}

// buildQueue assembles the outbox over the store, authenticated with the
// current session when one exists.
func buildQueue(store *storage.Store, slots *session.Slots) (*outbox.Queue, *remote.Client, error) {
	deviceID, err := slots.DeviceID()
	if err != nil {
		return nil, nil, err
	}
	token := ""
	mgr := session.NewManager(store, slots, cfg.SessionTTL)
	if sess, err := mgr.Current(); err == nil {
		token = sess.Token
	}
	client := remote.New(cfg.ServerURL, token, deviceID)
	queue := outbox.New(store, client.Apply, outbox.Options{
		MaxRetries: cfg.MaxRetries,
		ItemDelay:  cfg.ItemDelay,
	})
	return queue, client, nil
}
