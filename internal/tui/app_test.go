package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/countdown/internal/model"
)

func TestApp_TabSwitchesPages(t *testing.T) {
	t.Parallel()
	timerPage := NewTimerPage(&fakeControl{}, nil)
	historyPage := NewHistoryPage(&stubHistory{}, time.Hour, 10)
	app := NewApp(timerPage, historyPage)

	if app.ActivePage() != TimerPageID {
		t.Fatalf("default page = %q, want timer", app.ActivePage())
	}

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	if app.ActivePage() != HistoryPageID {
		t.Fatalf("after tab = %q, want history", app.ActivePage())
	}

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	if app.ActivePage() != TimerPageID {
		t.Fatalf("after second tab = %q, want timer", app.ActivePage())
	}
}

func TestApp_KeysGoToActivePageOnly(t *testing.T) {
	t.Parallel()
	ctl := &fakeControl{}
	timerPage := NewTimerPage(ctl, nil)
	app := NewApp(NewHistoryPage(&stubHistory{}, time.Hour, 10), timerPage)

	// History is active, so digits must not reach the duration field.
	app.Update(runes("7"))
	if timerPage.input.Value() != "" {
		t.Fatalf("inactive timer page received key, input = %q", timerPage.input.Value())
	}
}

func TestApp_BroadcastsNonKeyMessages(t *testing.T) {
	t.Parallel()
	timerPage := NewTimerPage(&fakeControl{}, nil)
	historyPage := NewHistoryPage(&stubHistory{}, time.Hour, 10)
	app := NewApp(historyPage, timerPage)

	app.Update(TransitionMsg{From: model.Idle(0), To: model.Idle(8), Cause: model.CauseSetDuration})
	if timerPage.State() != model.Idle(8) {
		t.Fatalf("background timer page state = %v, want Idle(8)", timerPage.State())
	}

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if timerPage.width != 120 {
		t.Fatalf("background page width = %d, want 120", timerPage.width)
	}
}

func TestApp_View(t *testing.T) {
	t.Parallel()
	app := NewApp(NewTimerPage(&fakeControl{}, nil))
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	if view := app.View(); !strings.Contains(view, "countdown") {
		t.Errorf("view missing header:\n%s", view)
	}

	if got := NewApp().View(); got != "No active page" {
		t.Errorf("empty app view = %q", got)
	}
}
