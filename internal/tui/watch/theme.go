// Package watch implements the live bridge monitor TUI. It polls the HTTP
// API and renders workspace states and the recent invocation log.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the watch TUI.
type Theme struct {
	// Workspace state colors
	StateIdle     lipgloss.Style
	StateWorking  lipgloss.Style
	StateDone     lipgloss.Style
	StateFailed   lipgloss.Style
	StateUnopened lipgloss.Style

	// UI elements
	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StateIdle:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		StateWorking:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StateDone:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StateFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StateUnopened: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
	}
}

// styleForState picks the theme style for a workspace state name.
func (t Theme) styleForState(state string) lipgloss.Style {
	switch state {
	case "Decoding", "Building":
		return t.StateWorking
	case "Decoded", "Built":
		return t.StateDone
	case "Failed":
		return t.StateFailed
	case "Unopened":
		return t.StateUnopened
	default:
		return t.StateIdle
	}
}
