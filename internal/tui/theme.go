package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha palette.
var (
	colorText     = lipgloss.Color("#cdd6f4")
	colorSubtext  = lipgloss.Color("#6c7086")
	colorSurface0 = lipgloss.Color("#313244")
	colorSurface1 = lipgloss.Color("#45475a")
	colorLavender = lipgloss.Color("#b4befe")
	colorMauve    = lipgloss.Color("#cba6f7")
	colorRed      = lipgloss.Color("#f38ba8")
	colorYellow   = lipgloss.Color("#f9e2af")
	colorGreen    = lipgloss.Color("#a6e3a1")
	colorCrust    = lipgloss.Color("#11111b")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCrust).
			Background(colorMauve).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorSubtext)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1)

	focusedBorderStyle = borderStyle.
				BorderForeground(colorLavender)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorSubtext).
			Bold(true).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorText)
)

// confidenceColor grades a score for display.
func confidenceColor(confidence float64) lipgloss.Color {
	switch {
	case confidence >= 0.8:
		return colorGreen
	case confidence >= 0.6:
		return colorYellow
	}
	return colorRed
}
