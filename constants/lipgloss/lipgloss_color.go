package lipgloss

import "github.com/charmbracelet/lipgloss"

// Shared terminal styles for CLI output.
var (
	Red     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	Green   = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))
	Yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1FA8C"))
	Cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD"))
	Magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))
	Gray    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))

	Bold = lipgloss.NewStyle().Bold(true)

	// BoxStyle frames summary blocks such as session stats.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6272A4")).
			Padding(0, 1)
)
