package tui

import "github.com/charmbracelet/lipgloss"

// Console palette
var (
	ColorAccent = lipgloss.Color("#A8D8EA") // headers, selection
	ColorDeep   = lipgloss.Color("#596E79") // borders, secondary text
	ColorDark   = lipgloss.Color("#2C3E50")
	ColorText   = lipgloss.Color("#E0E0E0")
	ColorAlert  = lipgloss.Color("#FF6B6B") // error toasts, invalid fields
	ColorGood   = lipgloss.Color("#4ECDC4") // success toasts
	ColorWarn   = lipgloss.Color("#FFE66D") // info toasts
	ColorMuted  = lipgloss.Color("#6c757d")
)

var (
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorDeep).
			Padding(0, 1)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleSubtitle = lipgloss.NewStyle().
			Foreground(ColorDeep).
			Italic(true)

	StyleStatusGood = lipgloss.NewStyle().Foreground(ColorGood).Bold(true)
	StyleStatusBad  = lipgloss.NewStyle().Foreground(ColorAlert).Bold(true)
	StyleStatusWarn = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDeep).
			Padding(0, 1)

	StyleInvalidCard = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorAlert).
				Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().Foreground(ColorMuted)

	StyleApp = lipgloss.NewStyle().Margin(1, 2)

	StyleTopBar = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorDeep).
			Padding(0, 1).
			MarginBottom(1)

	StyleMenuItem = lipgloss.NewStyle().
			Foreground(ColorDeep).
			Padding(0, 1)

	StyleMenuItemActive = lipgloss.NewStyle().
				Foreground(ColorDark).
				Background(ColorAccent).
				Bold(true).
				Padding(0, 1)

	StyleMenuKey = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Faint(true)

	StyleServiceBadge = lipgloss.NewStyle().
				Foreground(ColorText).
				Background(ColorDeep).
				Padding(0, 1).
				MarginRight(1)
)

// toastStyle picks the style for a notification level.
func toastStyle(level string) lipgloss.Style {
	switch level {
	case "success":
		return StyleStatusGood
	case "error":
		return StyleStatusBad
	}
	return StyleStatusWarn
}
