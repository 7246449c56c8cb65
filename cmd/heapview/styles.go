package main

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#00D7FF")
	successColor   = lipgloss.Color("#04B575")
	warningColor   = lipgloss.Color("#FFA500")
	errorColor     = lipgloss.Color("#FF4B4B")
	mutedColor     = lipgloss.Color("#666666")
	borderColor    = lipgloss.Color("#383838")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Background(lipgloss.Color("#1A1A1A")).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	segmentTitleStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)

	// Chunk cells
	inUseStyle  = lipgloss.NewStyle().Foreground(primaryColor)
	freeStyle   = lipgloss.NewStyle().Foreground(successColor)
	topStyle    = lipgloss.NewStyle().Foreground(secondaryColor)
	fenceStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	directStyle = lipgloss.NewStyle().Foreground(warningColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Background(lipgloss.Color("#1A1A1A")).
			Padding(0, 1)

	statusErrorStyle = statusStyle.Foreground(errorColor)

	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	mapStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)
)

// Cell glyphs per chunk state.
const (
	inUseGlyph  = "█"
	freeGlyph   = "░"
	topGlyph    = "▒"
	fenceGlyph  = "|"
	directGlyph = "▓"
)
