package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/whisper/internal/llm"
	"github.com/simonyos/whisper/internal/tui/theme"
)

// Message represents a chat message
type Message struct {
	Role    string // "user", "assistant", "system", "error"
	Content string
	Output  *llm.StructuredOutput
}

// FromLLM converts a stored or generated chat message for display
func FromLLM(msg llm.Message) Message {
	switch {
	case msg.Failed:
		return Message{Role: "error", Content: msg.Text}
	case msg.Role == llm.RoleUser:
		return Message{Role: "user", Content: msg.Text}
	default:
		return Message{Role: "assistant", Content: msg.Text, Output: msg.Output}
	}
}

// FormatOutput renders structured guidance as markdown: feedback, a
// numbered hint list and the snippet as a fenced block
func FormatOutput(out llm.StructuredOutput) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(out.Feedback))

	if len(out.Hints) > 0 {
		sb.WriteString("\n\n**Hints**\n\n")
		for i, hint := range out.Hints {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.TrimSpace(hint)))
		}
	}

	if snippet := strings.TrimSpace(out.Snippet); snippet != "" {
		lang := strings.ToLower(out.ProgrammingLanguage)
		if lang == "unknown" {
			lang = ""
		}
		sb.WriteString("\n\n```" + lang + "\n" + snippet + "\n```\n")
	}
	return sb.String()
}

// Messages is the scrollable message list component
type Messages struct {
	viewport viewport.Model
	messages []Message
	renderer *glamour.TermRenderer
	width    int
	height   int
	ready    bool
	welcome  string
}

func newRenderer(width int) *glamour.TermRenderer {
	// Use dark style explicitly to avoid terminal color queries
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width-10),
	)
	return renderer
}

// NewMessages creates a new messages component
func NewMessages(width, height int) *Messages {
	return &Messages{
		viewport: viewport.New(width, height),
		messages: []Message{},
		renderer: newRenderer(width),
		width:    width,
		height:   height,
		ready:    true,
	}
}

// SetSize updates the component dimensions
func (m *Messages) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.renderer = newRenderer(width)
	m.updateContent()
	m.viewport.GotoBottom()
}

// AddMessage appends a message and scrolls to it
func (m *Messages) AddMessage(msg Message) {
	m.messages = append(m.messages, msg)
	m.updateContent()
	m.viewport.GotoBottom()
}

// Prepend inserts older messages above the current ones and keeps the
// view at the top so the loaded page is what the user sees next
func (m *Messages) Prepend(older []Message) {
	if len(older) == 0 {
		return
	}
	merged := make([]Message, 0, len(older)+len(m.messages))
	merged = append(merged, older...)
	merged = append(merged, m.messages...)
	m.messages = merged
	m.updateContent()
	m.viewport.GotoTop()
}

// Clear removes all messages
func (m *Messages) Clear() {
	m.messages = []Message{}
	m.updateContent()
}

// Len returns the number of displayed messages
func (m *Messages) Len() int {
	return len(m.messages)
}

// AtTop reports whether the viewport is scrolled to the oldest message
func (m *Messages) AtTop() bool {
	return m.viewport.AtTop()
}

// GetViewport returns the viewport for handling scroll input
func (m *Messages) GetViewport() *viewport.Model {
	return &m.viewport
}

// SetWelcome sets the welcome message to show when empty
func (m *Messages) SetWelcome(welcome string) {
	m.welcome = welcome
	m.updateContent()
}

func (m *Messages) markdown(content string) string {
	if m.renderer == nil {
		return content
	}
	r, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(r)
}

// updateContent rebuilds the viewport content
func (m *Messages) updateContent() {
	if !m.ready {
		return
	}

	t := theme.Current
	var sb strings.Builder
	contentWidth := m.width - 4

	if len(m.messages) == 0 && m.welcome != "" {
		m.viewport.SetContent(m.welcome)
		return
	}

	for _, msg := range m.messages {
		switch msg.Role {
		case "user":
			iconStyle := lipgloss.NewStyle().
				Foreground(t.Info).
				Bold(true)
			headerStyle := lipgloss.NewStyle().
				Foreground(t.Text).
				Bold(true)
			sb.WriteString(iconStyle.Render("◉") + " " + headerStyle.Render("You") + "\n")

			bodyStyle := lipgloss.NewStyle().
				Foreground(t.Text).
				PaddingLeft(2).
				Width(contentWidth)
			sb.WriteString(bodyStyle.Render(msg.Content) + "\n\n")

		case "assistant":
			headerStyle := lipgloss.NewStyle().
				Foreground(t.Primary).
				Bold(true)
			sb.WriteString(headerStyle.Render("✦ Whisper") + "\n")

			content := msg.Content
			if msg.Output != nil {
				content = FormatOutput(*msg.Output)
			}

			bodyStyle := lipgloss.NewStyle().
				Foreground(t.Text).
				PaddingLeft(2).
				Width(contentWidth)
			sb.WriteString(bodyStyle.Render(m.markdown(content)) + "\n\n")

		case "system":
			iconStyle := lipgloss.NewStyle().
				Foreground(t.Info)
			sysStyle := lipgloss.NewStyle().
				Foreground(t.TextMuted).
				Italic(true).
				Width(contentWidth)
			sb.WriteString(iconStyle.Render("ℹ") + " " + sysStyle.Render(msg.Content) + "\n\n")

		case "error":
			iconStyle := lipgloss.NewStyle().
				Foreground(t.Error).
				Bold(true)
			errStyle := lipgloss.NewStyle().
				Foreground(t.Error).
				Width(contentWidth)
			sb.WriteString(iconStyle.Render("✗") + " " + errStyle.Render(msg.Content) + "\n\n")
		}
	}

	m.viewport.SetContent(sb.String())
}

// View renders the messages
func (m *Messages) View() string {
	if !m.ready {
		return ""
	}
	return m.viewport.View()
}
