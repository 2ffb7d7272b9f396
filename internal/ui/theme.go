package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. A single azure accent over neutral grays; errors and
// warnings keep conventional red and yellow.
const (
	ColorAccent   = "81"  // Primary accent (#5FD7FF) - bright azure
	ColorGray     = "245" // Labels and secondary figures
	ColorDarkGray = "238" // Borders, separators, inactive markers
	ColorRed      = "196" // Error lines
	ColorYellow   = "220" // Warning lines
)

// Theme holds the lipgloss styles used by the analysis TUI and the
// status renderer.
type Theme struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Active  lipgloss.Style

	Border lipgloss.Style
	Trend  lipgloss.Style
	Speed  lipgloss.Style
	Label  lipgloss.Style
}

// NewTheme builds the render theme: colored styles for terminals,
// pass-through styles when color is disabled.
func NewTheme(noColor bool) Theme {
	if noColor {
		return plainTheme()
	}
	return colorTheme()
}

func colorTheme() Theme {
	accent := lipgloss.Color(ColorAccent)
	gray := lipgloss.Color(ColorGray)
	darkGray := lipgloss.Color(ColorDarkGray)

	return Theme{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		Success: lipgloss.NewStyle().Foreground(accent),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(darkGray),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(accent),

		Border: lipgloss.NewStyle().Foreground(darkGray),
		Trend:  lipgloss.NewStyle().Foreground(accent),
		Speed:  lipgloss.NewStyle().Foreground(gray),
		Label:  lipgloss.NewStyle().Foreground(gray),
	}
}

// plainTheme shares one unstyled instance across every field; styles
// are values, so that is safe.
func plainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Header:  plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
		Dim:     plain,
		Active:  plain,

		Border: plain,
		Trend:  plain,
		Speed:  plain,
		Label:  plain,
	}
}
