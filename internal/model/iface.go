package model

// TimerReader provides read access to a timer engine.
type TimerReader interface {
	State() State
}

// TimerControl is the command surface a view layer drives.
// Invalid commands are no-ops rather than errors.
type TimerControl interface {
	TimerReader
	SetDuration(seconds int)
	Start()
	Stop()
}

// TimerWatcher delivers every transition, in order, until the returned
// cancel func is called.
type TimerWatcher interface {
	Watch(fn func(Transition)) (cancel func())
}

// TimerAPI is the unified contract for in-process transports (HTTP and socket RPC).
type TimerAPI interface {
	TimerControl
	TimerWatcher
}

// RunWriter persists finished runs.
type RunWriter interface {
	InsertRun(rec RunRecord) error
}

// HistoryReader provides read-only queries on run history.
type HistoryReader interface {
	RecentRuns(limit int) ([]RunRecord, error)
	RunStats() (RunStats, error)
}
