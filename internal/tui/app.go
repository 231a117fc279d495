package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/simonyos/whisper/internal/assistant"
	"github.com/simonyos/whisper/internal/generation"
	"github.com/simonyos/whisper/internal/history"
	"github.com/simonyos/whisper/internal/llm"
	"github.com/simonyos/whisper/internal/problem"
	"github.com/simonyos/whisper/internal/tui/components"
	"github.com/simonyos/whisper/internal/tui/theme"
)

const version = "0.1.0"

const (
	headerHeight = 2
	statusHeight = 2
	editorHeight = 5
)

// Options wires the chat view to configuration
type Options struct {
	// Models is the catalog shown by /models
	Models []llm.Model

	// PageSize is how many stored messages each history page loads
	PageSize int

	// KeyFor resolves the API key for a model id
	KeyFor func(modelID string) string

	// OnModelChange persists a model picked with /model
	OnModelChange func(modelID string) error

	Logger *zap.Logger
}

// ConfigChangedMsg is sent when the config file changes on disk
type ConfigChangedMsg struct {
	Model string
}

type exchangeMsg struct {
	ex  assistant.Exchange
	err error
}

type historyMsg struct {
	page   history.Page
	offset int
	err    error
}

type clearedMsg struct {
	err error
}

// Model is the main TUI model
type Model struct {
	assistant *assistant.Assistant
	opts      Options

	// Components
	header      *components.Header
	messages    *components.Messages
	editor      *components.Editor
	status      *components.Status
	help        *components.HelpDialog
	suggestions *components.Suggestions
	spinner     spinner.Model

	// State
	width    int
	height   int
	ready    bool
	showHelp bool

	// pending counts asks that have not reported back. Superseded asks
	// still report, as discarded exchanges.
	pending int

	// loaded is how many stored messages are on screen, which is also the
	// offset of the next older page. total is the stored count.
	loaded       int
	total        int
	loadingOlder bool
}

// New creates a new TUI model
func New(a *assistant.Assistant, opts Options) Model {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.KeyFor == nil {
		opts.KeyFor = func(string) string { return "" }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	header := components.NewHeader(80, version)
	header.SetModel(a.ModelID())
	editor := components.NewEditor(80, editorHeight)
	if ctx, err := a.Problem(); err == nil {
		header.SetProblem(ctx.ID)
		editor.SetProblem(ctx.ID, problem.LanguageLabel(ctx.Language))
	}

	status := components.NewStatus(80)
	status.SetModel(a.ModelID())

	messages := components.NewMessages(80, 20)
	messages.SetWelcome(welcomeMessage())

	return Model{
		assistant:   a,
		opts:        opts,
		header:      header,
		messages:    messages,
		editor:      editor,
		status:      status,
		help:        components.NewHelpDialog(keys.Bindings(), components.BuiltinCommands),
		suggestions: components.NewSuggestions(),
		spinner:     sp,
	}
}

// welcomeMessage returns the content shown before any message exists
func welcomeMessage() string {
	t := theme.Current
	var sb strings.Builder

	sb.WriteString(lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Render("\n   ✦ whisper") + "\n\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(t.Text).Bold(true).Render("   Hints, not answers.") + "\n\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(t.Border).Render("   "+strings.Repeat("─", 40)) + "\n\n")

	tipStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	for _, tip := range []string{
		"Ask where to start, or why your code fails a case",
		"Your code file is re-read on every message",
		"History is kept per problem; PgUp loads older messages",
	} {
		sb.WriteString("   " + lipgloss.NewStyle().Foreground(t.Accent).Render("›") + " " + tipStyle.Render(tip) + "\n")
	}

	sb.WriteString("\n" + lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true).Render("   Type /help for commands • Enter to send") + "\n")
	return sb.String()
}

// Init loads the newest history page
func (m Model) Init() tea.Cmd {
	return m.loadPage(0)
}

func (m Model) loadPage(offset int) tea.Cmd {
	a, limit := m.assistant, m.opts.PageSize
	return func() tea.Msg {
		page, err := a.History(context.Background(), limit, offset)
		return historyMsg{page: page, offset: offset, err: err}
	}
}

func (m Model) ask(prompt string) tea.Cmd {
	a := m.assistant
	return func() tea.Msg {
		ex, err := a.Ask(context.Background(), prompt)
		return exchangeMsg{ex: ex, err: err}
	}
}

func (m Model) clearHistory() tea.Cmd {
	a := m.assistant
	return func() tea.Msg {
		return clearedMsg{err: a.Clear(context.Background())}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Help):
			m.showHelp = true
			return m, nil

		case key.Matches(msg, keys.Stop):
			if m.suggestions.IsVisible() {
				m.suggestions.Hide()
				return m, nil
			}
			m.stop()
			return m, nil

		case key.Matches(msg, keys.Complete):
			if selected, ok := m.suggestions.GetSelected(); ok && m.suggestions.IsVisible() {
				m.editor.SetValue(completion(selected))
				m.suggestions.Hide()
				return m, nil
			}

		case key.Matches(msg, keys.Up):
			if m.suggestions.IsVisible() {
				m.suggestions.MoveUp()
				return m, nil
			}

		case key.Matches(msg, keys.Down):
			if m.suggestions.IsVisible() {
				m.suggestions.MoveDown()
				return m, nil
			}

		case key.Matches(msg, keys.RecallPrev):
			if m.editor.Previous() {
				m.suggestions.Filter(m.editor.Value())
			}
			return m, nil

		case key.Matches(msg, keys.RecallNext):
			if m.editor.Next() {
				m.suggestions.Filter(m.editor.Value())
			}
			return m, nil

		case key.Matches(msg, keys.Send):
			if selected, ok := m.suggestions.GetSelected(); ok && m.suggestions.IsVisible() {
				m.suggestions.Hide()
				if selected.TakesArgument() {
					m.editor.SetValue(completion(selected))
					return m, nil
				}
				m.editor.Reset()
				return m.handleCommand(selected.Name)
			}

			input := strings.TrimSpace(m.editor.Value())
			if input == "" {
				return m, nil
			}
			m.editor.Reset()
			m.suggestions.Hide()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m, m.send(input)

		case key.Matches(msg, keys.PageUp):
			if m.messages.AtTop() && m.loaded < m.total && !m.loadingOlder {
				m.loadingOlder = true
				cmds = append(cmds, m.loadPage(m.loaded))
			}
			cmds = append(cmds, m.scroll(msg))

		case key.Matches(msg, keys.PageDown):
			cmds = append(cmds, m.scroll(msg))
		}

		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
		m.suggestions.Filter(m.editor.Value())

	case tea.MouseMsg:
		cmds = append(cmds, m.scroll(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.messages.SetSize(msg.Width, m.messagesHeight())
		m.editor.SetSize(msg.Width, editorHeight)
		if !m.ready {
			// Clear any garbage that may have accumulated before init
			m.editor.Reset()
			m.ready = true
		}
		m.header.SetWidth(msg.Width)
		m.status.SetWidth(msg.Width)

	case spinner.TickMsg:
		if m.pending > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case historyMsg:
		m.applyHistory(msg)

	case exchangeMsg:
		m.applyExchange(msg)

	case clearedMsg:
		if msg.err != nil {
			m.addError("Failed to clear history: " + msg.err.Error())
			return m, nil
		}
		m.messages.Clear()
		m.loaded, m.total = 0, 0
		m.status.SetHistory(0, 0)
		m.addSystem("History cleared.")

	case ConfigChangedMsg:
		m.rebind(msg.Model)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) messagesHeight() int {
	h := m.height - headerHeight - statusHeight - editorHeight
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) scroll(msg tea.Msg) tea.Cmd {
	vp := m.messages.GetViewport()
	var cmd tea.Cmd
	*vp, cmd = vp.Update(msg)
	return cmd
}

func completion(cmd components.Command) string {
	if cmd.TakesArgument() {
		return cmd.Name + " "
	}
	return cmd.Name
}

// send shows the prompt and starts generating. A prompt sent while another
// is in flight replaces it.
func (m *Model) send(prompt string) tea.Cmd {
	m.editor.Remember(prompt)
	m.messages.AddMessage(components.Message{Role: "user", Content: prompt})
	m.status.SetMessage("")
	m.pending++
	m.status.SetThinking(true)
	if m.pending == 1 {
		return tea.Batch(m.spinner.Tick, m.ask(prompt))
	}
	return m.ask(prompt)
}

func (m *Model) stop() {
	if m.assistant.Stop() {
		m.addSystem("Generation stopped.")
	}
}

func (m *Model) applyHistory(msg historyMsg) {
	m.loadingOlder = false
	if msg.err != nil {
		m.addError("Failed to load history: " + msg.err.Error())
		return
	}

	page := msg.page.Chronological()
	older := make([]components.Message, 0, len(page))
	for _, stored := range page {
		older = append(older, components.FromLLM(stored))
	}
	m.messages.Prepend(older)
	if msg.offset == 0 {
		m.messages.GetViewport().GotoBottom()
	}

	m.loaded += len(page)
	m.total = msg.page.TotalCount
	m.status.SetHistory(m.loaded, m.total)
}

func (m *Model) applyExchange(msg exchangeMsg) {
	if m.pending > 0 {
		m.pending--
	}
	m.status.SetThinking(m.pending > 0)

	if msg.err != nil {
		switch {
		case errors.Is(msg.err, generation.ErrNoModel):
			m.addError("No model selected. Use /model <id> to pick one, /models to list them.")
		default:
			m.addError(msg.err.Error())
		}
		return
	}

	ex := msg.ex
	if ex.Discarded {
		return
	}
	if ex.ProblemID != "" {
		m.header.SetProblem(ex.ProblemID)
		m.editor.SetProblem(ex.ProblemID, ex.Language)
	}

	m.messages.AddMessage(components.FromLLM(ex.Reply))
	if ex.Err != nil {
		m.opts.Logger.Debug("generation failed", zap.String("kind", ex.Err.Kind.String()), zap.Error(ex.Err))
		return
	}

	if ex.PersistErr != nil {
		m.addError("This reply could not be saved: " + ex.PersistErr.Error())
		return
	}
	m.loaded += 2
	m.total += 2
	m.status.SetHistory(m.loaded, m.total)
}

// rebind re-selects the model after a config change so new keys take
// effect without restarting
func (m *Model) rebind(modelID string) {
	if modelID == "" {
		return
	}
	previous := m.assistant.ModelID()
	if err := m.assistant.SwitchModel(modelID, m.opts.KeyFor(modelID)); err != nil {
		m.addError(fmt.Sprintf("Config changed but %s cannot be used: %v", modelID, err))
		return
	}
	m.setModel(modelID)
	if previous != modelID {
		m.addSystem("Model switched to " + modelID + " (config changed).")
	}
}

func (m *Model) setModel(modelID string) {
	m.header.SetModel(modelID)
	m.status.SetModel(modelID)
}

func (m *Model) addSystem(content string) {
	m.messages.AddMessage(components.Message{Role: "system", Content: content})
}

func (m *Model) addError(content string) {
	m.messages.AddMessage(components.Message{Role: "error", Content: content})
}

// handleCommand processes slash commands
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "/help":
		m.showHelp = true
		return m, nil

	case "/model":
		if len(parts) == 1 {
			m.addSystem(fmt.Sprintf("Current model: %s\nUsage: /model <id>", m.assistant.ModelID()))
			return m, nil
		}
		id := parts[1]
		if err := m.assistant.SwitchModel(id, m.opts.KeyFor(id)); err != nil {
			m.addError(fmt.Sprintf("Cannot switch to %s: %v", id, err))
			return m, nil
		}
		m.setModel(id)
		m.addSystem("Model switched to " + id + ".")
		if m.opts.OnModelChange != nil {
			if err := m.opts.OnModelChange(id); err != nil {
				m.addError("Model not saved to config: " + err.Error())
			}
		}
		return m, nil

	case "/models":
		m.addSystem(m.modelList())
		return m, nil

	case "/clear":
		return m, m.clearHistory()

	case "/stop":
		m.stop()
		return m, nil

	case "/quit", "/exit", "/q":
		return m, tea.Quit

	default:
		m.addError("Unknown command: " + cmd + "\nType /help for available commands.")
		return m, nil
	}
}

func (m Model) modelList() string {
	if len(m.opts.Models) == 0 {
		return "No models available."
	}
	current := m.assistant.ModelID()

	var sb strings.Builder
	sb.WriteString("Available models:\n")
	for _, model := range m.opts.Models {
		marker := "  "
		if model.ID == current {
			marker = "● "
		}
		sb.WriteString(fmt.Sprintf("%s%-18s %s (%s)\n", marker, model.ID, model.Display, model.Vendor))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	t := theme.Current

	messagesView := m.messages.View()
	if m.pending > 0 {
		thinkingStyle := lipgloss.NewStyle().Foreground(t.Primary)
		messagesView += "\n" + thinkingStyle.Render(m.spinner.View()+" Thinking...")
	}
	messagesView = lipgloss.NewStyle().
		Height(m.messagesHeight()).
		Render(messagesView)

	sections := []string{m.header.View(), messagesView}
	if m.suggestions.IsVisible() {
		m.suggestions.SetWidth(m.width)
		sections = append(sections, m.suggestions.View())
	}
	sections = append(sections, m.editor.View(), m.status.View())

	view := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if m.showHelp {
		view = components.PlaceOverlay(m.help.View(), m.width, m.height)
	}

	return lipgloss.NewStyle().
		Background(t.Background).
		Width(m.width).
		Height(m.height).
		Render(view)
}
