package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorOrange = lipgloss.Color("208")
	ColorRed    = lipgloss.Color("196")
	ColorGray   = lipgloss.Color("244")
	ColorDim    = lipgloss.Color("240")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	tabStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Foreground(lipgloss.Color("0")).
			Background(ColorAccent).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(1, 0)

	runningClockStyle = clockStyle.Foreground(ColorGreen)
	idleClockStyle    = clockStyle.Foreground(ColorGray)

	labelStyle = lipgloss.NewStyle().Foreground(ColorGray)
	errorStyle = lipgloss.NewStyle().Foreground(ColorRed)
	helpStyle  = lipgloss.NewStyle().Foreground(ColorDim).Italic(true)

	completedStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	stoppedStyle   = lipgloss.NewStyle().Foreground(ColorOrange)
)

func outcomeStyle(o string) lipgloss.Style {
	if o == "stopped" {
		return stoppedStyle
	}
	return completedStyle
}

// renderTabs renders the page switcher header with active highlighted.
func renderTabs(active string) string {
	var tabs []string
	for _, id := range []string{TimerPageID, HistoryPageID} {
		if id == active {
			tabs = append(tabs, activeTabStyle.Render(id))
		} else {
			tabs = append(tabs, tabStyle.Render(id))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("countdown "), lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}
