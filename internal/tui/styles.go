package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor   = lipgloss.Color("#5FAFAF") // Teal accent
	secondaryColor = lipgloss.Color("#666666") // Gray for secondary text
	successColor   = lipgloss.Color("#87AF87") // Muted sage for completed
	warningColor   = lipgloss.Color("#D7AF5F") // Amber for in progress
	errorColor     = lipgloss.Color("#AF5F5F") // Muted terracotta for errors

	// TitleStyle for headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// SubtleStyle for hints/help text
	SubtleStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	// PanelStyle frames the summary indicators
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)

	// IndicatorStyle lays out one label/value pair in the summary panel
	IndicatorStyle = lipgloss.NewStyle().
			PaddingRight(3)

	// ValueStyle for indicator values
	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// ErrorStyle for the error banner
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor).
			Border(lipgloss.NormalBorder()).
			BorderForeground(errorColor).
			Padding(0, 1)

	// StatusBarStyle for bottom status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)
)

// statusStyles colors the rate indicators.
var (
	completedStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	inProgressStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	overdueStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
)
