package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/whisper/internal/tui/theme"
)

// Header shows the brand, the current problem and the bound model
type Header struct {
	Width     int
	Version   string
	ProblemID string
	Model     string
}

// NewHeader creates a new header component
func NewHeader(width int, version string) *Header {
	return &Header{
		Width:   width,
		Version: version,
	}
}

// SetWidth updates the header width
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetProblem sets the displayed problem id
func (h *Header) SetProblem(id string) {
	h.ProblemID = id
}

// SetModel sets the displayed model id
func (h *Header) SetModel(model string) {
	h.Model = model
}

// View renders the header
func (h *Header) View() string {
	t := theme.Current

	logo := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Render("✦ whisper")

	versionStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.BackgroundSecondary).
		Padding(0, 1).
		Render(fmt.Sprintf("v%s", h.Version))

	leftPart := lipgloss.JoinHorizontal(lipgloss.Center, logo, "  ", versionStyle)

	problemID := h.ProblemID
	if problemID == "" {
		problemID = "no problem"
	}
	maxProblemLen := 40
	if len(problemID) > maxProblemLen {
		problemID = problemID[:maxProblemLen-3] + "..."
	}
	problemStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Bold(true)

	model := h.Model
	if model == "" {
		model = "no model"
	}
	modelStyle := lipgloss.NewStyle().
		Foreground(t.Accent)

	rightPart := lipgloss.JoinHorizontal(
		lipgloss.Center,
		problemStyle.Render(problemID),
		lipgloss.NewStyle().Foreground(t.TextMuted).Render(" · "),
		modelStyle.Render(model),
	)

	spacing := h.Width - lipgloss.Width(leftPart) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		leftPart,
		lipgloss.NewStyle().Width(spacing).Render(""),
		rightPart,
	)

	separator := lipgloss.NewStyle().
		Foreground(t.Border).
		Width(h.Width).
		Render(strings.Repeat("─", h.Width))

	return header + "\n" + separator
}
