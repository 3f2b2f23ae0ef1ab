package model

import (
	"fmt"
	"time"
)

// Phase identifies which variant of State is active.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase as its lowercase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes "idle" or "running".
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = PhaseIdle
	case "running":
		*p = PhaseRunning
	default:
		return fmt.Errorf("model: unknown phase %q", string(text))
	}
	return nil
}

// State is the timer state. Exactly one variant is active:
//
//   - Idle: ConfiguredSeconds holds the staged duration.
//   - Running: TotalSeconds is fixed for the run and RemainingSeconds counts down
//     within [0, TotalSeconds].
//
// State values are immutable; transitions replace them wholesale.
type State struct {
	Phase             Phase `json:"phase"`
	ConfiguredSeconds int   `json:"configured_seconds"`
	TotalSeconds      int   `json:"total_seconds"`
	RemainingSeconds  int   `json:"remaining_seconds"`
}

// Idle returns the Idle variant with a staged duration.
func Idle(configuredSeconds int) State {
	return State{Phase: PhaseIdle, ConfiguredSeconds: configuredSeconds}
}

// Running returns the Running variant.
func Running(totalSeconds, remainingSeconds int) State {
	return State{Phase: PhaseRunning, TotalSeconds: totalSeconds, RemainingSeconds: remainingSeconds}
}

// IsRunning reports whether a countdown is active.
func (s State) IsRunning() bool { return s.Phase == PhaseRunning }

// CanStart reports whether Start would begin a countdown from this state.
func (s State) CanStart() bool { return s.Phase == PhaseIdle && s.ConfiguredSeconds > 0 }

// Progress returns the fraction of the run still remaining, in [0, 1].
// Idle states report 0.
func (s State) Progress() float64 {
	if s.Phase != PhaseRunning || s.TotalSeconds <= 0 {
		return 0
	}
	return float64(s.RemainingSeconds) / float64(s.TotalSeconds)
}

func (s State) String() string {
	if s.Phase == PhaseRunning {
		return fmt.Sprintf("Running(%d,%d)", s.TotalSeconds, s.RemainingSeconds)
	}
	return fmt.Sprintf("Idle(%d)", s.ConfiguredSeconds)
}

// Cause names the operation that produced a transition.
type Cause string

const (
	CauseSetDuration Cause = "set_duration"
	CauseStart       Cause = "start"
	CauseTick        Cause = "tick"
	CauseFinish      Cause = "finish"
	CauseStop        Cause = "stop"
)

// Transition records one state replacement.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Cause Cause     `json:"cause"`
	At    time.Time `json:"at"`
}

// Outcome describes how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
)

// RunRecord is one finished countdown run, as kept in history.
type RunRecord struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	TotalSeconds     int       `json:"total_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Outcome          Outcome   `json:"outcome"`
}

// Elapsed returns how many seconds were counted down before the run ended.
func (r RunRecord) Elapsed() int {
	return r.TotalSeconds - r.RemainingSeconds
}

// RunStats aggregates history.
type RunStats struct {
	Completed      int64 `json:"completed"`
	Stopped        int64 `json:"stopped"`
	SecondsCounted int64 `json:"seconds_counted"`
}

// Total returns the number of recorded runs.
func (s RunStats) Total() int64 { return s.Completed + s.Stopped }
