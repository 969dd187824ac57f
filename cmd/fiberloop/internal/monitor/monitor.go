// Package monitor implements a live terminal dashboard over a running
// fiberloop.Loop, plus an optional websocket companion feed for a
// browser-based view of the same snapshots. It is modeled on
// cmd/vango/internal/ui's bubbletea wizard: a Model polled by a ticking
// Cmd, rendered with lipgloss.
package monitor

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recera/fiberloop/pkg/fiberloop"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3b82f6")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10b981"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3b82f6")).
			Padding(1, 2)
)

// Model is the bubbletea state for the monitor dashboard.
type Model struct {
	loop     *fiberloop.Loop
	interval time.Duration
	stats    fiberloop.Stats
	ticks    int
	quitting bool

	// onSnapshot, if set, is called on every poll -- the hook the
	// websocket companion server uses to broadcast the same snapshot.
	onSnapshot func(fiberloop.Stats)
}

// New creates a monitor model polling loop every interval.
func New(loop *fiberloop.Loop, interval time.Duration, onSnapshot func(fiberloop.Stats)) Model {
	return Model{loop: loop, interval: interval, onSnapshot: onSnapshot}
}

type tickMsg time.Time

func (m Model) Init() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		m.stats = m.loop.Stats()
		m.ticks++
		if m.onSnapshot != nil {
			m.onSnapshot(m.stats)
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return "stopped watching\n"
	}

	body := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n\n%s",
		labelStyle.Render("ready queue:"), valueStyle.Render(fmt.Sprint(m.stats.ReadyLen)),
		labelStyle.Render("waiting on:"), valueStyle.Render(fmt.Sprint(m.stats.WaitingOn)),
		labelStyle.Render("finished:"), valueStyle.Render(fmt.Sprint(m.stats.Finished)),
		labelStyle.Render(fmt.Sprintf("poll #%d · press q to quit", m.ticks)),
	)

	return titleStyle.Render("fiberloop monitor") + "\n" + boxStyle.Render(body) + "\n"
}
