package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors for the TUI
type Theme struct {
	// Primary colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Text colors
	Text        lipgloss.Color
	TextMuted   lipgloss.Color
	TextInverse lipgloss.Color

	// Background colors
	Background          lipgloss.Color
	BackgroundSecondary lipgloss.Color

	// Status colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// Border colors
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	BorderMuted lipgloss.Color
}

// Current is the active theme
var Current = DefaultTheme()

// DefaultTheme returns the whisper theme: orange accents on charcoal
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#FFA116"), // Orange
		Secondary: lipgloss.Color("#5C4A2E"),
		Accent:    lipgloss.Color("#FFC01E"), // Medium-difficulty yellow

		Text:        lipgloss.Color("#EFF1F6"),
		TextMuted:   lipgloss.Color("#8A8A8A"),
		TextInverse: lipgloss.Color("#1A1A1A"),

		Background:          lipgloss.Color("#1A1A1A"),
		BackgroundSecondary: lipgloss.Color("#282828"),

		Success: lipgloss.Color("#2CBB5D"),
		Warning: lipgloss.Color("#FFC01E"),
		Error:   lipgloss.Color("#EF4743"),
		Info:    lipgloss.Color("#5A9BD5"),

		Border:      lipgloss.Color("#3E3E3E"),
		BorderFocus: lipgloss.Color("#FFA116"),
		BorderMuted: lipgloss.Color("#282828"),
	}
}
