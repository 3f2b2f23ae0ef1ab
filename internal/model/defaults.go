package model

import "time"

// Shared defaults used by the service, the TUI and the control CLI.
const (
	DefaultTickInterval      = time.Second
	DefaultRefreshInterval   = 2 * time.Second
	DefaultHistoryLimit      = 20
	DefaultHistoryRetention  = 30 // days, 0 = disabled
	DefaultMaxHistoryLimit   = 500
	DefaultConfiguredSeconds = 0
)
