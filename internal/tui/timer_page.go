package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/countdown/internal/model"
)

const TimerPageID = "timer"

// errReporter is implemented by controllers that can fail, such as the
// socket client.
type errReporter interface {
	Err() error
}

// commandDoneMsg is sent after a command ran against the controller.
type commandDoneMsg struct{ name string }

// TimerPage shows the countdown and drives the three timer commands.
type TimerPage struct {
	ctl    model.TimerControl
	watch  WatchFunc
	ctx    context.Context
	cancel context.CancelFunc

	state    model.State
	events   <-chan model.Transition
	watching bool
	lostErr  error
	cmdErr   error

	input    textinput.Model
	inputErr string
	bar      progress.Model
	help     help.Model
	keys     KeyMap
	width    int
}

// NewTimerPage creates the timer page. watch may be nil, in which case
// the page only reflects command results.
func NewTimerPage(ctl model.TimerControl, watch WatchFunc) *TimerPage {
	in := textinput.New()
	in.Placeholder = "seconds"
	in.Prompt = "duration › "
	in.CharLimit = 9
	in.Width = 12
	in.Cursor.SetMode(cursor.CursorStatic)
	in.Focus()

	ctx, cancel := context.WithCancel(context.Background())
	return &TimerPage{
		ctl:    ctl,
		watch:  watch,
		ctx:    ctx,
		cancel: cancel,
		input:  in,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:   help.New(),
		keys:   DefaultKeyMap(),
	}
}

func (p *TimerPage) ID() string { return TimerPageID }

// State returns the last state the page observed.
func (p *TimerPage) State() model.State { return p.state }

// Close ends the transition stream.
func (p *TimerPage) Close() { p.cancel() }

func (p *TimerPage) Init() tea.Cmd {
	if p.watching || p.watch == nil {
		return nil
	}
	p.watching = true
	return startWatch(p.ctx, p.watch)
}

func (p *TimerPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.bar.Width = max(10, min(msg.Width-8, 60))
		p.help.Width = msg.Width
		return nil, nil

	case WatchStartedMsg:
		p.state = msg.State
		p.events = msg.events
		p.lostErr = nil
		p.syncInput()
		return waitForTransition(p.events), nil

	case TransitionMsg:
		p.state = msg.To
		p.syncInput()
		if p.events == nil {
			return nil, nil
		}
		return waitForTransition(p.events), nil

	case WatchClosedMsg:
		p.events = nil
		p.lostErr = msg.Err
		if p.lostErr == nil {
			p.lostErr = fmt.Errorf("timer connection closed")
		}
		return nil, nil

	case commandDoneMsg:
		p.cmdErr = nil
		if r, ok := p.ctl.(errReporter); ok {
			p.cmdErr = r.Err()
		}
		if p.watch == nil {
			p.state = p.ctl.State()
		}
		return nil, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return nil, nil
}

func (p *TimerPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.ForceQuit), key.Matches(msg, p.keys.Quit):
		p.cancel()
		return tea.Quit, nil

	case key.Matches(msg, p.keys.NextPage):
		return nil, &PageNav{PageID: HistoryPageID}

	case key.Matches(msg, p.keys.Help):
		p.help.ShowAll = !p.help.ShowAll
		return nil, nil

	case key.Matches(msg, p.keys.Start):
		if !p.state.CanStart() || p.inputErr != "" {
			return nil, nil
		}
		return p.command("start", p.ctl.Start), nil

	case key.Matches(msg, p.keys.Stop):
		if !p.state.IsRunning() {
			return nil, nil
		}
		return p.command("stop", p.ctl.Stop), nil
	}

	if !isDurationKey(msg) || p.state.IsRunning() {
		return nil, nil
	}

	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() == before {
		return cmd, nil
	}
	return tea.Batch(cmd, p.applyInput()), nil
}

// isDurationKey reports whether msg edits the duration field. Letters are
// left to the key bindings.
func isDurationKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete, tea.KeyLeft, tea.KeyRight, tea.KeyHome, tea.KeyEnd, tea.KeyCtrlU:
		return true
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if (r < '0' || r > '9') && r != '-' && r != '+' {
				return false
			}
		}
		return len(msg.Runes) > 0
	}
	return false
}

// applyInput validates the field and stages a valid duration.
func (p *TimerPage) applyInput() tea.Cmd {
	seconds, ok, err := parseDuration(p.input.Value())
	if err != nil {
		p.inputErr = err.Error()
		return nil
	}
	p.inputErr = ""
	if !ok || seconds == p.state.ConfiguredSeconds {
		return nil
	}
	// Reflect the staged value right away; the stream confirms it.
	p.state = model.Idle(seconds)
	return p.command("set duration", func() { p.ctl.SetDuration(seconds) })
}

// syncInput keeps the field in step with the engine while it is not being
// edited into an invalid value.
func (p *TimerPage) syncInput() {
	if p.state.IsRunning() {
		p.input.Blur()
		return
	}
	if !p.input.Focused() {
		p.input.Focus()
	}
	if p.inputErr != "" {
		return
	}
	if cur, ok, _ := parseDuration(p.input.Value()); ok && cur == p.state.ConfiguredSeconds {
		return
	}
	if p.state.ConfiguredSeconds == 0 {
		p.input.SetValue("")
		return
	}
	p.input.SetValue(fmt.Sprint(p.state.ConfiguredSeconds))
}

func (p *TimerPage) command(name string, fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return commandDoneMsg{name: name}
	}
}

func (p *TimerPage) View(width, height int) string {
	var b strings.Builder

	b.WriteString(renderTabs(TimerPageID))
	b.WriteString("\n\n")

	st := p.state
	if st.IsRunning() {
		b.WriteString(runningClockStyle.Render(formatClock(st.RemainingSeconds)))
		b.WriteString("\n")
		b.WriteString(p.bar.ViewAs(st.Progress()))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("%d of %d seconds left", st.RemainingSeconds, st.TotalSeconds)))
	} else {
		b.WriteString(idleClockStyle.Render(formatClock(st.ConfiguredSeconds)))
		b.WriteString("\n")
		b.WriteString(p.bar.ViewAs(0))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("idle"))
	}
	b.WriteString("\n\n")

	b.WriteString(p.input.View())
	if p.inputErr != "" {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render(p.inputErr))
	}
	b.WriteString("\n\n")

	b.WriteString(p.renderButtons())
	b.WriteString("\n")

	if p.lostErr != nil {
		b.WriteString(errorStyle.Render("watch: " + p.lostErr.Error()))
		b.WriteString("\n")
	}
	if p.cmdErr != nil {
		b.WriteString(errorStyle.Render("command: " + p.cmdErr.Error()))
		b.WriteString("\n")
	}

	keys := p.keys
	keys.Start.SetEnabled(p.state.CanStart() && p.inputErr == "")
	keys.Stop.SetEnabled(p.state.IsRunning())
	b.WriteString("\n")
	b.WriteString(p.help.View(timerKeys{keys}))

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, sectionStyle.Render(b.String()))
}

// renderButtons shows start only as enabled when the engine would accept
// it, and stop only while running.
func (p *TimerPage) renderButtons() string {
	start := "[ start ]"
	if p.state.CanStart() && p.inputErr == "" {
		start = completedStyle.Bold(true).Render(start)
	} else {
		start = helpStyle.Render(start)
	}
	if !p.state.IsRunning() {
		return start
	}
	return start + "  " + stoppedStyle.Bold(true).Render("[ stop ]")
}
