package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/whisper/internal/tui/theme"
)

// Status renders the status bar at the bottom
type Status struct {
	Width    int
	Model    string
	Thinking bool
	Message  string

	// Loaded and Total describe how much of the stored history is on screen
	Loaded int
	Total  int
}

// NewStatus creates a new status bar
func NewStatus(width int) *Status {
	return &Status{Width: width}
}

// SetWidth updates the status bar width
func (s *Status) SetWidth(width int) {
	s.Width = width
}

// SetThinking sets the thinking state
func (s *Status) SetThinking(thinking bool) {
	s.Thinking = thinking
}

// SetMessage sets a transient status message
func (s *Status) SetMessage(msg string) {
	s.Message = msg
}

// SetModel sets the model name
func (s *Status) SetModel(model string) {
	s.Model = model
}

// SetHistory records how many stored messages are loaded
func (s *Status) SetHistory(loaded, total int) {
	s.Loaded = loaded
	s.Total = total
}

// View renders the status bar
func (s *Status) View() string {
	t := theme.Current

	hintStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted)

	hintText := "Enter to send · Esc to stop · Ctrl+C to quit"
	if s.Message != "" {
		hintText = s.Message
	} else if s.Loaded < s.Total {
		hintText = fmt.Sprintf("%d/%d messages · PgUp for older", s.Loaded, s.Total)
	}
	hint := hintStyle.Render(hintText)

	var rightContent string
	if s.Thinking {
		rightContent = lipgloss.NewStyle().
			Foreground(t.Primary).
			Render("● thinking...")
	} else {
		rightContent = lipgloss.NewStyle().
			Foreground(t.TextMuted).
			Background(t.BackgroundSecondary).
			Padding(0, 1).
			Render(s.Model)
	}

	spacing := s.Width - lipgloss.Width(hint) - lipgloss.Width(rightContent) - 2
	if spacing < 0 {
		spacing = 0
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		hint,
		lipgloss.NewStyle().Width(spacing).Render(""),
		rightContent,
	)
}
