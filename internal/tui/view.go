package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/expert"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("241"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statusColors = map[expert.Status]lipgloss.Style{
		expert.StatusPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		expert.StatusStarting: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		expert.StatusReady:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		expert.StatusBusy:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		expert.StatusStuck:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		expert.StatusUnknown:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "detached; agents keep running\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("control tower"))
	b.WriteString("  ")
	b.WriteString(messageStyle.Render(m.tower.SessionCfg.ProjectRoot))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-3s %-14s %-10s %-12s %-20s %s", "ID", "NAME", "STATUS", "ROLE", "BRANCH", "OPERATION")))
	b.WriteString("\n")

	for i, r := range m.rows {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}

		statusText := statusColors[r.status].Render(fmt.Sprintf("%-10s", r.status.String()))

		operation := ""
		if r.inFlight != "" {
			operation = m.spin.View() + " " + r.inFlight
		}

		line := fmt.Sprintf("%s%-3d %-14s %s %-12s %-20s %s",
			cursor, expertID(i), r.name, statusText, dash(r.role), dash(r.branch), operation)
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.messages) > 0 {
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString(messageStyle.Render("  " + msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch m.mode {
	case inputBranch:
		b.WriteString("relocate to branch: " + m.input.View())
	case inputRole:
		b.WriteString("assign role: " + m.input.View())
	default:
		b.WriteString(helpStyle.Render("  j/k move · l launch · r relocate · a role · x kill · q detach"))
	}
	b.WriteString("\n")

	return b.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
