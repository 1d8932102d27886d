// Package tui renders a live terminal dashboard of pipeline health.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"eventforge/internal/pipeline"
	"eventforge/internal/supervisor"
)

const refreshInterval = 500 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	borderBox  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type refreshMsg struct{ reports []pipeline.HealthReport }

type model struct {
	sup     *supervisor.Supervisor
	table   table.Model
	reports []pipeline.HealthReport
	width   int
	onQuit  func()
}

func newModel(sup *supervisor.Supervisor, onQuit func()) model {
	cols := []table.Column{
		{Title: "PIPELINE", Width: 20},
		{Title: "STATE", Width: 10},
		{Title: "SEQ", Width: 10},
		{Title: "EMITTED", Width: 10},
		{Title: "FAILED", Width: 8},
		{Title: "SKIPPED", Width: 8},
		{Title: "LAG", Width: 12},
		{Title: "RESTARTS", Width: 9},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(12))
	return model{sup: sup, table: t, width: 100, onQuit: onQuit}
}

func (m model) Init() tea.Cmd { return refreshCmd(m.sup) }

func refreshCmd(sup *supervisor.Supervisor) tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{reports: sup.Health()}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case refreshMsg:
		m.reports = msg.reports
		rows := make([]table.Row, len(msg.reports))
		for i, r := range msg.reports {
			rows[i] = table.Row{
				r.PipelineID,
				r.State,
				fmt.Sprintf("%d", r.Sequence),
				fmt.Sprintf("%d", r.EventsEmitted),
				fmt.Sprintf("%d", r.EventsFailed),
				fmt.Sprintf("%d", r.EventsSkipped),
				r.Lag.Truncate(time.Millisecond).String(),
				fmt.Sprintf("%d", r.Restarts),
			}
		}
		m.table.SetRows(rows)
		return m, refreshCmd(m.sup)
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) View() string {
	s := titleStyle.Render("eventforge pipelines") + "\n"
	s += borderBox.Render(m.table.View()) + "\n"
	for _, r := range m.reports {
		if r.LastError == "" {
			continue
		}
		line := fmt.Sprintf("%s: %s", r.PipelineID, r.LastError)
		s += errStyle.Render(wordwrap.String(line, m.width-2)) + "\n"
	}
	s += statusLine(m.reports) + "\n"
	s += helpStyle.Render("q: quit (graceful stop)")
	return s
}

func statusLine(reports []pipeline.HealthReport) string {
	var running, degraded, failed int
	for _, r := range reports {
		switch r.State {
		case "running":
			running++
		case "degraded":
			degraded++
		case "failed":
			failed++
		}
	}
	return okStyle.Render(fmt.Sprintf("running %d", running)) + "  " +
		warnStyle.Render(fmt.Sprintf("degraded %d", degraded)) + "  " +
		errStyle.Render(fmt.Sprintf("failed %d", failed))
}

// Run displays the dashboard until ctx is done or the user quits.
// onQuit is invoked once when the user requests shutdown.
func Run(ctx context.Context, sup *supervisor.Supervisor, onQuit func()) error {
	p := tea.NewProgram(newModel(sup, onQuit), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}
