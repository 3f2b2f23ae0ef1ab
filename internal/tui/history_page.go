package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/countdown/internal/model"
)

const HistoryPageID = "history"

const (
	chartHeight   = 8
	maxTableRows  = 10
	minChartWidth = 20
)

// historyLoadedMsg carries the result of one history fetch.
type historyLoadedMsg struct {
	runs  []model.RunRecord
	stats model.RunStats
	err   error
}

// historyTickMsg drives the periodic refresh.
type historyTickMsg time.Time

// HistoryPage shows recent runs as a bar chart and a table.
type HistoryPage struct {
	reader   model.HistoryReader
	interval time.Duration
	limit    int

	runs    []model.RunRecord
	stats   model.RunStats
	err     error
	loading bool
	loaded  bool
	ticking bool

	help help.Model
	keys KeyMap
}

// NewHistoryPage creates the history page. reader may be nil when history
// is disabled.
func NewHistoryPage(reader model.HistoryReader, interval time.Duration, limit int) *HistoryPage {
	if interval <= 0 {
		interval = model.DefaultRefreshInterval
	}
	if limit <= 0 {
		limit = model.DefaultHistoryLimit
	}
	return &HistoryPage{
		reader:   reader,
		interval: interval,
		limit:    limit,
		help:     help.New(),
		keys:     DefaultKeyMap(),
	}
}

func (p *HistoryPage) ID() string { return HistoryPageID }

func (p *HistoryPage) Init() tea.Cmd {
	if p.reader == nil {
		return nil
	}
	cmds := []tea.Cmd{p.fetch()}
	if !p.ticking {
		p.ticking = true
		cmds = append(cmds, p.scheduleTick())
	}
	return tea.Batch(cmds...)
}

func (p *HistoryPage) scheduleTick() tea.Cmd {
	return tea.Tick(p.interval, func(t time.Time) tea.Msg {
		return historyTickMsg(t)
	})
}

// fetch loads runs and stats off the update loop.
func (p *HistoryPage) fetch() tea.Cmd {
	if p.reader == nil || p.loading {
		return nil
	}
	p.loading = true
	reader, limit := p.reader, p.limit
	fetchCmd := func() tea.Msg {
		runs, err := reader.RecentRuns(limit)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		stats, err := reader.RunStats()
		return historyLoadedMsg{runs: runs, stats: stats, err: err}
	}
	return tea.Batch(fetchCmd, spinnerTick())
}

func (p *HistoryPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.help.Width = msg.Width
		return nil, nil

	case historyTickMsg:
		return tea.Batch(p.fetch(), p.scheduleTick()), nil

	case historyLoadedMsg:
		p.loading = false
		p.err = msg.err
		if msg.err == nil {
			p.runs = msg.runs
			p.stats = msg.stats
			p.loaded = true
		}
		return nil, nil

	case SpinnerTickMsg:
		if p.loading && !p.loaded {
			return spinnerTick(), nil
		}
		return nil, nil

	case TransitionMsg:
		// A run just ended; pick it up without waiting for the next tick.
		if msg.Cause == model.CauseFinish || (msg.Cause == model.CauseStop && msg.From.IsRunning()) {
			return p.fetch(), nil
		}
		return nil, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.ForceQuit), key.Matches(msg, p.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, p.keys.NextPage):
			return nil, &PageNav{PageID: TimerPageID}
		case key.Matches(msg, p.keys.Refresh):
			return p.fetch(), nil
		}
	}
	return nil, nil
}

func (p *HistoryPage) View(width, height int) string {
	header := renderTabs(HistoryPageID)
	footer := p.help.View(historyKeys{p.keys})

	bodyHeight := max(height-lipgloss.Height(header)-lipgloss.Height(footer)-4, 3)
	contentWidth := max(width-4, minChartWidth)

	var body string
	switch {
	case p.reader == nil:
		body = helpStyle.Render("Run history is disabled.")
	case !p.loaded && p.err == nil:
		body = renderLoadingPlaceholder(contentWidth, bodyHeight)
	default:
		body = p.renderBody(contentWidth)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer)
	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, sectionStyle.Render(content))
}

func (p *HistoryPage) renderBody(width int) string {
	var sections []string

	if p.err != nil {
		sections = append(sections, errorStyle.Render("history: "+p.err.Error()))
	}

	sections = append(sections, labelStyle.Render(fmt.Sprintf(
		"%d runs · %s completed · %s stopped · %s counted",
		p.stats.Total(),
		completedStyle.Render(fmt.Sprint(p.stats.Completed)),
		stoppedStyle.Render(fmt.Sprint(p.stats.Stopped)),
		formatClock(int(p.stats.SecondsCounted)),
	)))

	if len(p.runs) == 0 {
		sections = append(sections, "", helpStyle.Render("No runs recorded yet."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections, "", p.renderChart(width), "", p.renderTable())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderChart draws one bar per run, oldest on the left, sized by elapsed
// seconds and colored by outcome.
func (p *HistoryPage) renderChart(width int) string {
	maxBars := max(width/3, 1)
	runs := p.runs
	if len(runs) > maxBars {
		runs = runs[:maxBars]
	}

	bc := barchart.New(width, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(2),
		barchart.WithNoAxis(),
	)

	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		style := outcomeStyle(string(r.Outcome))
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{{
				Name:  string(r.Outcome),
				Value: float64(r.Elapsed()),
				Style: style.Background(style.GetForeground()),
			}},
		})
	}

	bc.Draw()
	return bc.View()
}

func (p *HistoryPage) renderTable() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-19s  %8s  %8s  %-9s", "started", "length", "counted", "outcome")))

	for i, r := range p.runs {
		if i == maxTableRows {
			break
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-19s  %8s  %8s  ",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatClock(r.TotalSeconds),
			formatClock(r.Elapsed()),
		))
		b.WriteString(outcomeStyle(string(r.Outcome)).Render(string(r.Outcome)))
	}
	return b.String()
}
