package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/whisper/internal/tui/theme"
)

// HelpDialog lists the key bindings and slash commands of the chat view
type HelpDialog struct {
	Width    int
	bindings []key.Binding
	commands []Command
}

// NewHelpDialog builds the dialog from the bindings the caller handles
func NewHelpDialog(bindings []key.Binding, commands []Command) *HelpDialog {
	return &HelpDialog{
		Width:    64,
		bindings: bindings,
		commands: commands,
	}
}

// Rows returns the (key, description) pairs the dialog shows. Bindings
// without help text or disabled ones are left out.
func (h *HelpDialog) Rows() [][2]string {
	var rows [][2]string
	for _, b := range h.bindings {
		help := b.Help()
		if !b.Enabled() || help.Key == "" {
			continue
		}
		rows = append(rows, [2]string{help.Key, help.Desc})
	}
	if len(h.commands) > 0 {
		rows = append(rows, [2]string{})
	}
	for _, cmd := range h.commands {
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		rows = append(rows, [2]string{usage, cmd.Description})
	}
	return rows
}

// View renders the help dialog
func (h *HelpDialog) View() string {
	t := theme.Current

	title := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Render("Keys and Commands")

	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Width(16)
	descStyle := lipgloss.NewStyle().Foreground(t.Text)

	var sb strings.Builder
	for _, row := range h.Rows() {
		if row[0] == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(keyStyle.Render(row[0]) + descStyle.Render(row[1]) + "\n")
	}

	footer := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Render("\nPress any key to close")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(h.Width)

	return box.Render(title + "\n\n" + sb.String() + footer)
}

// PlaceOverlay places the dialog centered on the screen
func PlaceOverlay(overlay string, bgWidth, bgHeight int) string {
	return lipgloss.Place(
		bgWidth,
		bgHeight,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(theme.Current.Background),
	)
}
