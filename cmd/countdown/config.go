package main

import (
	"time"

	"github.com/tinytelemetry/countdown/internal/model"
)

const (
	defaultTickInterval     = model.DefaultTickInterval
	defaultBindHost         = "127.0.0.1"
	defaultAPIPort          = 3030
	defaultQueryTimeout     = 30 * time.Second
	defaultHistoryRetention = model.DefaultHistoryRetention
	defaultInitialDuration  = model.DefaultConfiguredSeconds
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	TickInterval     time.Duration `mapstructure:"tick-interval"`
	InitialDuration  int           `mapstructure:"initial-duration"`
	APIEnabled       bool          `mapstructure:"api-enabled"`
	APIPort          int           `mapstructure:"api-port"`
	APIAddr          string        `mapstructure:"api-addr"`
	SocketPath       string        `mapstructure:"socket-path"`
	HistoryEnabled   bool          `mapstructure:"history-enabled"`
	DBPath           string        `mapstructure:"db-path"`
	HistoryRetention int           `mapstructure:"history-retention"`
	QueryTimeout     time.Duration `mapstructure:"query-timeout"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}
