// Package tui provides the terminal run view for convoke. It renders the
// orchestrator event stream as a live list of agents with their statuses.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/convoke/internal/orchestrator"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// EventMsg wraps one orchestrator event for the bubbletea loop.
type EventMsg struct {
	Event orchestrator.Event
}

// StreamClosedMsg signals that the run finished and the event stream drained.
type StreamClosedMsg struct{}

// agentRow is the display state of one agent in the current pass.
type agentRow struct {
	id        int
	agentType string
	status    string
	err       string
}

// Model is the bubbletea model for a run in progress.
type Model struct {
	events <-chan orchestrator.Event

	spinner spinner.Model
	query   string

	pass    int
	wave    int
	phase   string
	agents  map[int]*agentRow
	order   []int
	message string

	done     bool
	quitting bool
}

// NewModel creates a run view over the given event stream.
func NewModel(query string, events <-chan orchestrator.Event) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = runningStyle

	return &Model{
		events:  events,
		spinner: sp,
		query:   query,
		phase:   "planning",
		agents:  make(map[int]*agentRow),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

// listen waits for the next orchestrator event.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return StreamClosedMsg{}
		}
		return EventMsg{Event: event}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.apply(msg.Event)
		return m, m.listen()

	case StreamClosedMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one orchestrator event into the display state.
func (m *Model) apply(e orchestrator.Event) {
	if e.Pass > m.pass {
		// A new pass renumbers agents; the old rows belong to a discarded plan.
		m.pass = e.Pass
		m.agents = make(map[int]*agentRow)
		m.order = nil
		m.wave = 0
	}

	switch e.Type {
	case orchestrator.EventPlanStarted:
		m.phase = "planning"
	case orchestrator.EventPlanCompleted:
		m.phase = "executing"
		m.message = e.Message
	case orchestrator.EventWaveStarted:
		m.wave = e.Wave
	case orchestrator.EventAgentStarted:
		if _, seen := m.agents[e.AgentID]; !seen {
			m.order = append(m.order, e.AgentID)
		}
		m.agents[e.AgentID] = &agentRow{id: e.AgentID, agentType: e.AgentType, status: "running"}
	case orchestrator.EventAgentCompleted:
		if row := m.agents[e.AgentID]; row != nil {
			row.status = e.Message
		}
	case orchestrator.EventAgentFailed:
		if row := m.agents[e.AgentID]; row != nil {
			row.status = "failure"
			if e.Err != nil {
				row.err = e.Err.Error()
			}
		}
	case orchestrator.EventDeadlock:
		m.phase = "deadlocked"
		m.message = e.Message
	case orchestrator.EventReplanRequested:
		m.phase = "re-planning"
		m.message = e.Message
	case orchestrator.EventReplanFailed:
		m.phase = "executing (degraded)"
	case orchestrator.EventVerdictStarted:
		m.phase = "synthesizing"
	case orchestrator.EventRunCompleted:
		m.phase = "done"
		m.message = e.Message
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var sb strings.Builder

	header := fmt.Sprintf("convoke  %s", dimStyle.Render(truncate(m.query, 60)))
	sb.WriteString(titleStyle.Render(header))
	sb.WriteString("\n")

	status := m.phase
	if m.pass > 1 {
		status = fmt.Sprintf("%s (pass %d)", status, m.pass)
	}
	if m.wave > 0 && m.phase == "executing" {
		status = fmt.Sprintf("%s, wave %d", status, m.wave)
	}
	if m.done {
		sb.WriteString(dimStyle.Render(status))
	} else {
		sb.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), status))
	}
	sb.WriteString("\n\n")

	ids := append([]int(nil), m.order...)
	sort.Ints(ids)
	for _, id := range ids {
		row := m.agents[id]
		sb.WriteString(fmt.Sprintf("  %s agent %d  %s\n", statusGlyph(row.status), row.id, row.agentType))
		if row.err != "" {
			sb.WriteString(dimStyle.Render(fmt.Sprintf("      %s\n", truncate(row.err, 70))))
		}
	}

	if m.message != "" {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render(m.message))
		sb.WriteString("\n")
	}

	if !m.done {
		sb.WriteString(dimStyle.Render("\nq to quit\n"))
	}

	return sb.String()
}

func statusGlyph(status string) string {
	switch status {
	case "running":
		return runningStyle.Render("●")
	case "success":
		return successStyle.Render("✓")
	case "fallback_success":
		return warnStyle.Render("✓")
	case "failure":
		return failStyle.Render("✗")
	default:
		return dimStyle.Render("·")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// Run drives the run view until the event stream closes or the user quits.
// Returns true if the user quit before the run finished.
func Run(query string, events <-chan orchestrator.Event) (bool, error) {
	model := NewModel(query, events)
	p := tea.NewProgram(model)
	final, err := p.Run()
	if err != nil {
		return false, err
	}
	if m, ok := final.(*Model); ok {
		return m.quitting && !m.done, nil
	}
	return false, nil
}
