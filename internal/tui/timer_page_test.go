package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/countdown/internal/clock"
	"github.com/tinytelemetry/countdown/internal/model"
	"github.com/tinytelemetry/countdown/internal/timer"
)

type fakeControl struct {
	mu      sync.Mutex
	state   model.State
	calls   []string
	seconds []int
	err     error
}

func (f *fakeControl) State() model.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeControl) SetDuration(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "set")
	f.seconds = append(f.seconds, seconds)
	if !f.state.IsRunning() {
		f.state = model.Idle(seconds)
	}
}

func (f *fakeControl) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	if f.state.CanStart() {
		f.state = model.Running(f.state.ConfiguredSeconds, f.state.ConfiguredSeconds)
	}
}

func (f *fakeControl) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	f.state = model.Idle(0)
}

func (f *fakeControl) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeControl) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back into the page.
func run(t *testing.T, p *TimerPage, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if done, ok := c().(commandDoneMsg); ok {
				p.Update(done)
			}
		}
		return
	}
	p.Update(msg)
}

func TestTimerPage_TypingStagesDuration(t *testing.T) {
	t.Parallel()
	ctl := &fakeControl{}
	p := NewTimerPage(ctl, nil)

	cmd, nav := p.Update(runes("4"))
	if nav != nil {
		t.Fatalf("unexpected nav %+v", nav)
	}
	run(t, p, cmd)

	if got := ctl.callLog(); len(got) != 1 || got[0] != "set" || ctl.seconds[0] != 4 {
		t.Fatalf("calls = %v seconds = %v, want one set(4)", got, ctl.seconds)
	}
	if p.State() != model.Idle(4) {
		t.Fatalf("state = %v, want Idle(4)", p.State())
	}

	cmd, _ = p.Update(runes("2"))
	run(t, p, cmd)
	if ctl.seconds[len(ctl.seconds)-1] != 42 {
		t.Fatalf("seconds = %v, want last 42", ctl.seconds)
	}
}

func TestTimerPage_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	ctl := &fakeControl{}
	p := NewTimerPage(ctl, nil)

	p.Update(runes("-"))
	p.Update(runes("3"))

	if p.inputErr == "" {
		t.Fatal("expected inline error for negative input")
	}
	if got := ctl.callLog(); len(got) != 0 {
		t.Fatalf("engine received %v for invalid input", got)
	}
	if !strings.Contains(p.View(80, 30), "negative") {
		t.Error("view does not show the input error")
	}

	// Fixing the field clears the error and applies the value.
	p.Update(tea.KeyMsg{Type: tea.KeyHome})
	cmd, _ := p.Update(tea.KeyMsg{Type: tea.KeyDelete})
	run(t, p, cmd)
	if p.inputErr != "" {
		t.Fatalf("inputErr = %q after fix", p.inputErr)
	}
	if p.State() != model.Idle(3) {
		t.Fatalf("state = %v, want Idle(3)", p.State())
	}
}

func TestTimerPage_StartDisabledWithoutDuration(t *testing.T) {
	t.Parallel()
	ctl := &fakeControl{}
	p := NewTimerPage(ctl, nil)

	for _, k := range []tea.KeyMsg{{Type: tea.KeyEnter}, runes("s")} {
		if cmd, _ := p.Update(k); cmd != nil {
			t.Fatalf("%s produced a command with zero duration", k)
		}
	}
	if len(ctl.callLog()) != 0 {
		t.Fatalf("calls = %v", ctl.callLog())
	}
}

func TestTimerPage_StartAndStop(t *testing.T) {
	t.Parallel()
	ctl := &fakeControl{state: model.Idle(3)}
	p := NewTimerPage(ctl, nil)
	p.Update(TransitionMsg{From: model.Idle(0), To: model.Idle(3), Cause: model.CauseSetDuration})

	if strings.Contains(p.View(80, 30), "[ stop ]") {
		t.Error("stop shown while idle")
	}
	if cmd, _ := p.Update(runes("x")); cmd != nil {
		t.Fatal("stop issued while idle")
	}

	cmd, _ := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, p, cmd)
	if p.State() != model.Running(3, 3) {
		t.Fatalf("state = %v, want Running(3,3)", p.State())
	}
	if !strings.Contains(p.View(80, 30), "[ stop ]") {
		t.Error("stop not shown while running")
	}

	// Edits are ignored while running.
	if cmd, _ := p.Update(runes("9")); cmd != nil {
		t.Fatal("duration edit accepted while running")
	}

	cmd, _ = p.Update(runes("x"))
	run(t, p, cmd)
	if p.State() != model.Idle(0) {
		t.Fatalf("state = %v, want Idle(0)", p.State())
	}

	want := []string{"start", "stop"}
	got := ctl.callLog()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestTimerPage_ShowsCommandErrors(t *testing.T) {
	t.Parallel()
	ctl := &fakeControl{state: model.Idle(2), err: errors.New("socket closed")}
	p := NewTimerPage(ctl, nil)
	p.Update(TransitionMsg{To: model.Idle(2), Cause: model.CauseSetDuration})

	cmd, _ := p.Update(runes("s"))
	run(t, p, cmd)
	if !strings.Contains(p.View(100, 30), "socket closed") {
		t.Error("command error not rendered")
	}
}

func TestTimerPage_QuitAndNavigate(t *testing.T) {
	t.Parallel()
	p := NewTimerPage(&fakeControl{}, nil)

	cmd, _ := p.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}

	_, nav := p.Update(tea.KeyMsg{Type: tea.KeyTab})
	if nav == nil || nav.PageID != HistoryPageID {
		t.Fatalf("tab nav = %+v, want history", nav)
	}
}

func TestTimerPage_FollowsEngine(t *testing.T) {
	t.Parallel()
	fc := clock.NewFake(time.Unix(0, 0))
	engine := timer.New(timer.WithClock(fc))
	defer engine.Close()

	p := NewTimerPage(engine, EngineWatch(engine))
	defer p.Close()

	started, ok := startWatch(p.ctx, p.watch)().(WatchStartedMsg)
	if !ok {
		t.Fatal("watch did not start")
	}
	wait, _ := p.Update(started)

	next := func() {
		t.Helper()
		msgs := make(chan tea.Msg, 1)
		go func() { msgs <- wait() }()
		select {
		case msg := <-msgs:
			wait, _ = p.Update(msg)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for transition")
		}
	}

	engine.SetDuration(2)
	next()
	if p.State() != model.Idle(2) || p.input.Value() != "2" {
		t.Fatalf("state = %v input = %q, want Idle(2) and \"2\"", p.State(), p.input.Value())
	}

	engine.Start()
	next()
	if p.State() != model.Running(2, 2) || p.input.Focused() {
		t.Fatalf("state = %v focused = %v", p.State(), p.input.Focused())
	}

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	next()
	if p.State() != model.Running(2, 1) {
		t.Fatalf("state = %v, want Running(2,1)", p.State())
	}
	if !strings.Contains(p.View(80, 30), "00:01") {
		t.Error("view does not show remaining time")
	}

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	next()
	if p.State() != model.Idle(0) || !p.input.Focused() || p.input.Value() != "" {
		t.Fatalf("after finish state = %v focused = %v input = %q", p.State(), p.input.Focused(), p.input.Value())
	}
}

func TestTimerPage_WatchFailure(t *testing.T) {
	t.Parallel()
	failing := func(ctx context.Context) (model.State, <-chan model.Transition, error) {
		return model.State{}, nil, errors.New("no daemon")
	}
	p := NewTimerPage(&fakeControl{}, failing)

	msg := startWatch(p.ctx, p.watch)()
	p.Update(msg)
	if !strings.Contains(p.View(80, 30), "no daemon") {
		t.Error("watch failure not rendered")
	}
}
