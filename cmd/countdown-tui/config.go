package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/countdown/internal/model"
	"github.com/tinytelemetry/countdown/internal/socketrpc"
)

const (
	defaultRefreshInterval = model.DefaultRefreshInterval
	defaultHistoryLimit    = model.DefaultHistoryLimit
	defaultTickInterval    = model.DefaultTickInterval
	defaultQueryTimeout    = 30 * time.Second
)

// cliConfig holds only TUI-relevant configuration. It reads the same file
// as the service so socket-path and db-path stay in step.
type cliConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	HistoryLimit    int           `mapstructure:"history-limit"`
	SocketPath      string        `mapstructure:"socket-path"`
	TickInterval    time.Duration `mapstructure:"tick-interval"`
	HistoryEnabled  bool          `mapstructure:"history-enabled"`
	DBPath          string        `mapstructure:"db-path"`
	QueryTimeout    time.Duration `mapstructure:"query-timeout"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("COUNTDOWN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("refresh-interval", defaultRefreshInterval)
	v.SetDefault("history-limit", defaultHistoryLimit)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("tick-interval", defaultTickInterval)
	v.SetDefault("history-enabled", true)
	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "countdown", "countdown.duckdb"))
	v.SetDefault("query-timeout", defaultQueryTimeout)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "countdown", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	for _, p := range []*string{&cfg.SocketPath, &cfg.DBPath} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	return cfg, nil
}
