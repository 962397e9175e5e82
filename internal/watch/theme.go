package watch

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("#8BE9FD")
	mutedColor  = lipgloss.Color("#6272A4")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	deviceStyle  = lipgloss.NewStyle().Width(22).Foreground(lipgloss.Color("#F8F8F2"))
	flowingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50FA7B"))
	idleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB86C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)
