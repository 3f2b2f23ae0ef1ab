package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings with built-in help text.
type KeyMap struct {
	// Global
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	NextPage  key.Binding

	// Timer
	Start key.Binding
	Stop  key.Binding

	// History
	Refresh key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch page"),
		),

		Start: key.NewBinding(
			key.WithKeys("enter", "s"),
			key.WithHelp("enter/s", "start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// timerKeys adapts KeyMap to help.KeyMap for the timer page.
type timerKeys struct{ KeyMap }

func (k timerKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.NextPage, k.Help, k.Quit}
}

func (k timerKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop},
		{k.NextPage, k.Help, k.Quit, k.ForceQuit},
	}
}

// historyKeys adapts KeyMap to help.KeyMap for the history page.
type historyKeys struct{ KeyMap }

func (k historyKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.NextPage, k.Quit}
}

func (k historyKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh}, {k.NextPage, k.Quit, k.ForceQuit}}
}
