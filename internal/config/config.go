// Package config loads taskdock settings from a config file, environment,
// and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	DataDir       string        `mapstructure:"data_dir"`
	ServerURL     string        `mapstructure:"server_url"`
	MaxRetries    int           `mapstructure:"max_retries"`
	ItemDelay     time.Duration `mapstructure:"item_delay"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	LogLevel      string        `mapstructure:"log_level"`
}

// Load reads config from ~/.config/taskdock/config.yaml (or cfgFile when
// non-empty), with TASKDOCK_* environment overrides. A missing file is
// not an error; defaults apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("max_retries", 3)
	v.SetDefault("item_delay", 100*time.Millisecond)
	v.SetDefault("sync_interval", 5*time.Minute)
	v.SetDefault("probe_interval", 30*time.Second)
	v.SetDefault("session_ttl", 30*24*time.Hour)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("TASKDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, ".config", "taskdock"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskdock"
	}
	return filepath.Join(home, ".local", "share", "taskdock")
}
