package components

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/whisper/internal/tui/theme"
)

// oscReply matches terminal answers to OSC queries (background colour and
// the like) that some terminals type into the input at startup
var oscReply = regexp.MustCompile(`\x1b?\]\d+;[^\x07\x1b\s]*(\x07|\x1b\\)?`)

// Editor is the prompt input. It knows which problem it is bound to and
// keeps the prompts sent for each problem so they can be recalled.
type Editor struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool

	problem  string
	language string

	// recall holds sent prompts per problem, oldest first. cursor indexes
	// into the current problem's list; len(list) means the draft.
	recall map[string][]string
	cursor int
	draft  string
}

// NewEditor creates a new editor component
func NewEditor(width, height int) *Editor {
	ta := textarea.New()
	ta.Placeholder = "Ask for a hint, or /help..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.Current.TextMuted)

	e := &Editor{
		textarea: ta,
		focused:  true,
		recall:   make(map[string][]string),
	}
	e.SetSize(width, height)
	return e
}

// SetSize updates the editor dimensions. One row goes to the problem label.
func (e *Editor) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.textarea.SetWidth(width - 6)
	e.textarea.SetHeight(max(height-3, 1))
}

// SetProblem binds the editor to a problem. Switching problems resets the
// recall position to the new problem's draft.
func (e *Editor) SetProblem(id, language string) {
	if id != e.problem {
		e.cursor = len(e.recall[id])
		e.draft = ""
	}
	e.problem = id
	e.language = language
	if id != "" {
		e.textarea.Placeholder = "Ask about " + id + ", or /help..."
	}
}

// Problem returns the bound problem id
func (e *Editor) Problem() string {
	return e.problem
}

// Remember records a sent prompt for the bound problem
func (e *Editor) Remember(prompt string) {
	list := e.recall[e.problem]
	if n := len(list); n == 0 || list[n-1] != prompt {
		list = append(list, prompt)
		e.recall[e.problem] = list
	}
	e.cursor = len(list)
	e.draft = ""
}

// Previous replaces the input with the prompt sent before the one shown.
// It reports false when there is nothing older.
func (e *Editor) Previous() bool {
	list := e.recall[e.problem]
	if e.cursor == 0 || len(list) == 0 {
		return false
	}
	if e.cursor >= len(list) {
		e.cursor = len(list)
		e.draft = e.textarea.Value()
	}
	e.cursor--
	e.setInput(list[e.cursor])
	return true
}

// Next moves toward newer prompts and finally back to the unsent draft
func (e *Editor) Next() bool {
	list := e.recall[e.problem]
	if e.cursor >= len(list) {
		return false
	}
	e.cursor++
	if e.cursor == len(list) {
		e.setInput(e.draft)
	} else {
		e.setInput(list[e.cursor])
	}
	return true
}

func (e *Editor) setInput(value string) {
	e.textarea.SetValue(value)
	e.textarea.CursorEnd()
}

// Focus focuses the editor
func (e *Editor) Focus() {
	e.focused = true
	e.textarea.Focus()
}

// Blur unfocuses the editor
func (e *Editor) Blur() {
	e.focused = false
	e.textarea.Blur()
}

// Value returns the current text with terminal escape replies removed
func (e *Editor) Value() string {
	return cleanInput(e.textarea.Value())
}

func cleanInput(val string) string {
	val = oscReply.ReplaceAllString(val, "")
	return strings.TrimSpace(strings.ReplaceAll(val, "\x1b", ""))
}

// Reset clears the editor
func (e *Editor) Reset() {
	e.textarea.Reset()
}

// SetValue sets the editor content
func (e *Editor) SetValue(value string) {
	e.textarea.SetValue(value)
}

// Update handles textarea updates
func (e *Editor) Update(msg tea.Msg) (*Editor, tea.Cmd) {
	var cmd tea.Cmd
	e.textarea, cmd = e.textarea.Update(msg)
	return e, cmd
}

// label is the line above the input naming the bound problem
func (e *Editor) label() string {
	if e.problem == "" {
		return "no problem loaded"
	}
	parts := []string{e.problem}
	if e.language != "" {
		parts = append(parts, e.language)
	}
	if n := len(e.recall[e.problem]); n > 0 {
		parts = append(parts, "ctrl+p recalls")
	}
	return strings.Join(parts, " · ")
}

// View renders the editor
func (e *Editor) View() string {
	t := theme.Current

	borderColor := t.Border
	if e.focused {
		borderColor = t.BorderFocus
	}

	label := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		MaxWidth(e.width - 6).
		Render(e.label())

	container := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(e.width-2).
		Padding(0, 1)

	return container.Render(label + "\n" + e.textarea.View())
}
