package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonyos/whisper/internal/assistant"
	"github.com/simonyos/whisper/internal/generation"
	"github.com/simonyos/whisper/internal/history"
	"github.com/simonyos/whisper/internal/llm"
	"github.com/simonyos/whisper/internal/problem"
	"github.com/simonyos/whisper/internal/tui/components"
)

type stubAdapter struct{}

func (stubAdapter) Init(string) {}

func (stubAdapter) Generate(context.Context, llm.Request) llm.Result {
	return llm.Success(llm.StructuredOutput{Feedback: "Try a hash map."})
}

var catalog = []llm.Model{
	{ID: "mock", Vendor: "mock", Display: "Mock"},
	{ID: "other", Vendor: "mock", Display: "Other"},
}

func newTestModel(t *testing.T, stored int) (Model, history.Store) {
	t.Helper()
	registry := llm.NewRegistry()
	for _, m := range catalog {
		registry.Register(m, stubAdapter{})
	}
	coord := generation.New(registry)
	if err := coord.SelectModel("mock", "key"); err != nil {
		t.Fatalf("SelectModel() error = %v", err)
	}

	store := history.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < stored; i++ {
		msg := llm.UserMessage(fmt.Sprintf("m%d", i))
		if err := store.Append(ctx, "leetcode-two-sum", []llm.Message{msg}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	source := problem.StaticSource{Context: problem.Context{ID: "leetcode-two-sum", Statement: "Two sum"}}
	a := assistant.New(coord, store, source)
	m := New(a, Options{
		Models:   catalog,
		PageSize: 4,
		KeyFor:   func(id string) string { return "key-" + id },
	})
	return m, store
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func viewportText(t *testing.T, m Model) string {
	t.Helper()
	view := m.messages.GetViewport().View()
	if view == "" {
		t.Fatal("viewport is empty")
	}
	return view
}

func TestHistoryPaging(t *testing.T) {
	m, _ := newTestModel(t, 10)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, m.loadPage(0)())
	if m.loaded != 4 || m.total != 10 || m.messages.Len() != 4 {
		t.Fatalf("after first page loaded=%d total=%d shown=%d", m.loaded, m.total, m.messages.Len())
	}

	for m.loaded < m.total {
		m, _ = update(t, m, m.loadPage(m.loaded)())
	}
	if m.loaded != 10 || m.messages.Len() != 10 {
		t.Errorf("after paging loaded=%d shown=%d, want 10", m.loaded, m.messages.Len())
	}
	if !strings.Contains(viewportText(t, m), "m0") {
		t.Error("oldest message should be visible at the top after the last page")
	}
}

func TestPageUpAtTopRequestsOlderPage(t *testing.T) {
	m, _ := newTestModel(t, 10)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 200})
	m, _ = update(t, m, m.loadPage(0)())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	if !m.loadingOlder || cmd == nil {
		t.Fatal("PgUp at the top should start loading the next page")
	}

	// A second PgUp while the page is loading must not request it again
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	if !m.loadingOlder {
		t.Error("loading flag cleared early")
	}
}

func TestExchangeHandling(t *testing.T) {
	m, _ := newTestModel(t, 0)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m.pending = 3

	m, _ = update(t, m, exchangeMsg{ex: assistant.Exchange{Discarded: true}})
	if m.messages.Len() != 0 {
		t.Errorf("discarded exchange was shown")
	}

	failure := llm.StatusError("openai", 401, "bad key", nil)
	m, _ = update(t, m, exchangeMsg{ex: assistant.Exchange{Reply: llm.ErrorMessage(failure), Err: failure}})
	if m.messages.Len() != 1 || m.total != 0 {
		t.Errorf("error exchange: shown=%d total=%d", m.messages.Len(), m.total)
	}

	reply := llm.AssistantMessage(llm.StructuredOutput{Feedback: "Good idea", Hints: []string{"sort first"}})
	m, _ = update(t, m, exchangeMsg{ex: assistant.Exchange{ProblemID: "leetcode-3sum", User: llm.UserMessage("hi"), Reply: reply}})
	if m.loaded != 2 || m.total != 2 || m.pending != 0 {
		t.Errorf("success exchange: loaded=%d total=%d pending=%d", m.loaded, m.total, m.pending)
	}
	if m.header.ProblemID != "leetcode-3sum" || m.editor.Problem() != "leetcode-3sum" {
		t.Errorf("problem not rebound: header %q, editor %q", m.header.ProblemID, m.editor.Problem())
	}
}

func TestSendAndReceive(t *testing.T) {
	m, store := newTestModel(t, 0)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	cmd := m.send("where do I start?")
	if m.pending != 1 || cmd == nil {
		t.Fatalf("send() pending = %d", m.pending)
	}

	m, _ = update(t, m, m.ask("where do I start?")())
	if m.pending != 0 {
		t.Errorf("pending = %d after reply", m.pending)
	}
	if m.messages.Len() != 2 {
		t.Errorf("shown = %d, want prompt and reply", m.messages.Len())
	}

	page, _ := store.Fetch(context.Background(), "leetcode-two-sum", 0, 0)
	if page.TotalCount != 2 || m.total != 2 {
		t.Errorf("stored = %d, model total = %d", page.TotalCount, m.total)
	}
}

func TestSlashCommands(t *testing.T) {
	m, _ := newTestModel(t, 2)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	var saved string
	m.opts.OnModelChange = func(id string) error {
		saved = id
		return nil
	}

	next, _ := m.handleCommand("/model other")
	m = next.(Model)
	if m.assistant.ModelID() != "other" || saved != "other" || m.status.Model != "other" {
		t.Errorf("/model other: bound=%q saved=%q", m.assistant.ModelID(), saved)
	}

	next, _ = m.handleCommand("/model nope")
	m = next.(Model)
	if m.assistant.ModelID() != "other" {
		t.Error("unknown model must leave the binding unchanged")
	}

	if list := m.modelList(); !strings.Contains(list, "● other") || !strings.Contains(list, "mock") {
		t.Errorf("modelList() = %q", list)
	}

	next, cmd := m.handleCommand("/clear")
	m = next.(Model)
	if cmd == nil {
		t.Fatal("/clear should return a command")
	}
	m, _ = update(t, m, cmd())
	if m.total != 0 || m.loaded != 0 {
		t.Errorf("after /clear total=%d loaded=%d", m.total, m.loaded)
	}

	next, _ = m.handleCommand("/help")
	if !next.(Model).showHelp {
		t.Error("/help should open the help dialog")
	}
}

func TestConfigChangeRebinds(t *testing.T) {
	m, _ := newTestModel(t, 0)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, ConfigChangedMsg{Model: "other"})
	if m.assistant.ModelID() != "other" || m.header.Model != "other" {
		t.Errorf("config change did not rebind: %q", m.assistant.ModelID())
	}

	m, _ = update(t, m, ConfigChangedMsg{Model: "missing"})
	if m.assistant.ModelID() != "other" {
		t.Error("invalid config model must keep the current binding")
	}
}

func TestFormatOutput(t *testing.T) {
	got := components.FormatOutput(llm.StructuredOutput{
		Feedback:            "Close!",
		Hints:               []string{"check bounds", "use two pointers"},
		Snippet:             "i := 0",
		ProgrammingLanguage: "Go",
	})
	for _, want := range []string{"Close!", "1. check bounds", "2. use two pointers", "```go\ni := 0\n```"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatOutput() missing %q in %q", want, got)
		}
	}
}

func TestPromptRecall(t *testing.T) {
	m, _ := newTestModel(t, 0)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	if m.editor.Problem() != "leetcode-two-sum" {
		t.Fatalf("editor bound to %q", m.editor.Problem())
	}

	m.send("why is this O(n^2)?")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if got := m.editor.Value(); got != "why is this O(n^2)?" {
		t.Errorf("ctrl+p recalled %q", got)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if got := m.editor.Value(); got != "" {
		t.Errorf("ctrl+n should return to the empty draft, got %q", got)
	}
}

func TestHelpListsHandledBindings(t *testing.T) {
	m, _ := newTestModel(t, 0)
	rows := m.help.Rows()

	shown := make(map[string]bool, len(rows))
	for _, row := range rows {
		shown[row[0]] = true
	}
	for _, b := range keys.Bindings() {
		if k := b.Help().Key; k != "" && !shown[k] {
			t.Errorf("binding %q missing from help", k)
		}
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlH})
	if !m.showHelp {
		t.Fatal("ctrl+h should open help")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if m.showHelp {
		t.Error("any key should close help")
	}
}
