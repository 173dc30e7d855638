package ui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7aa2f7")
	successColor = lipgloss.Color("#9ece6a")
	warningColor = lipgloss.Color("#e0af68")
	errorColor   = lipgloss.Color("#f7768e")
	textColor    = lipgloss.Color("#c0caf5")
	dimColor     = lipgloss.Color("#565f89")

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	targetStyle = lipgloss.NewStyle().
			Foreground(textColor)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	copiedStyle  = lipgloss.NewStyle().Foreground(successColor)
	skippedStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)
