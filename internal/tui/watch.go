package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/countdown/internal/model"
)

// WatchFunc opens a transition stream. It returns the state the first
// transition starts from. The channel closes when ctx is done or the
// source goes away.
type WatchFunc func(ctx context.Context) (model.State, <-chan model.Transition, error)

type stateWatcher interface {
	WatchState(fn func(model.Transition)) (model.State, func())
}

// EngineWatch adapts an in-process engine to a WatchFunc.
func EngineWatch(e stateWatcher) WatchFunc {
	return func(ctx context.Context) (model.State, <-chan model.Transition, error) {
		out := make(chan model.Transition)
		current, cancel := e.WatchState(func(t model.Transition) {
			select {
			case out <- t:
			case <-ctx.Done():
			}
		})
		go func() {
			<-ctx.Done()
			cancel()
		}()
		return current, out, nil
	}
}

// WatchStartedMsg carries the initial state of a new stream.
type WatchStartedMsg struct {
	State  model.State
	events <-chan model.Transition
}

// TransitionMsg is one engine transition.
type TransitionMsg model.Transition

// WatchClosedMsg reports that the stream ended, with the error that
// prevented it from opening, if any.
type WatchClosedMsg struct{ Err error }

func startWatch(ctx context.Context, watch WatchFunc) tea.Cmd {
	return func() tea.Msg {
		st, events, err := watch(ctx)
		if err != nil {
			return WatchClosedMsg{Err: err}
		}
		return WatchStartedMsg{State: st, events: events}
	}
}

func waitForTransition(events <-chan model.Transition) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-events
		if !ok {
			return WatchClosedMsg{}
		}
		return TransitionMsg(t)
	}
}
