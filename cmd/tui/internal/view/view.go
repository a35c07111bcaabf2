package view

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen is a top-level flow the menu can open. Title and ShortHelp are
// rendered by the host around the screen's own View.
type Screen interface {
	tea.Model
	Title() string
	ShortHelp() string
}

// BackMsg asks the host to close the current screen.
type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	frameStyle  = lipgloss.NewStyle().Padding(1)
	boxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))

	panelStyle = lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(56)
)

func activeStyle(s string) string {
	return accentStyle.Render(s)
}

// outcome renders the last step of a flow: status in red or green depending
// on err, followed by any extra lines.
func outcome(status string, err error, extra ...string) string {
	style := okStyle
	if err != nil {
		style = errorStyle
	}

	lines := append([]string{style.Bold(true).Render(status), ""}, extra...)
	lines = append(lines, faintStyle.Render("(Esc to go back)"))

	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
