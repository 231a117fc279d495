package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/simonyos/whisper/internal/generation"
	"github.com/simonyos/whisper/internal/history"
	"github.com/simonyos/whisper/internal/llm"
	"github.com/simonyos/whisper/internal/problem"
)

// MockAdapter is a test implementation of llm.Adapter
type MockAdapter struct {
	GenerateFunc func(ctx context.Context, req llm.Request) llm.Result

	mu       sync.Mutex
	requests []llm.Request
}

func (m *MockAdapter) Init(string) {}

func (m *MockAdapter) Generate(ctx context.Context, req llm.Request) llm.Result {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.GenerateFunc(ctx, req)
}

var twoSum = problem.Context{
	ID:        "leetcode-two-sum",
	Statement: "Find two numbers that add up to target.",
	UserCode:  "class Solution {}",
	Language:  "Java",
}

func setup(t *testing.T, fn func(ctx context.Context, req llm.Request) llm.Result, opts ...Option) (*Assistant, *MockAdapter, history.Store) {
	t.Helper()
	adapter := &MockAdapter{GenerateFunc: fn}
	registry := llm.NewRegistry()
	registry.Register(llm.Model{ID: "mock"}, adapter)

	coord := generation.New(registry)
	if err := coord.SelectModel("mock", "key"); err != nil {
		t.Fatalf("SelectModel() error = %v", err)
	}

	store := history.NewMemoryStore()
	return New(coord, store, problem.StaticSource{Context: twoSum}, opts...), adapter, store
}

func reply(feedback string) func(context.Context, llm.Request) llm.Result {
	return func(context.Context, llm.Request) llm.Result {
		return llm.Success(llm.StructuredOutput{Feedback: feedback, Hints: []string{"use a map"}})
	}
}

func TestAsk_PersistsSuccessfulExchange(t *testing.T) {
	a, adapter, store := setup(t, reply("Nice start 🌟"))
	ctx := context.Background()

	ex, err := a.Ask(ctx, "  where do I begin?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ex.Discarded || ex.Err != nil || ex.PersistErr != nil {
		t.Fatalf("Ask() = %+v", ex)
	}
	if ex.Reply.Output == nil || ex.Reply.Output.Feedback != "Nice start 🌟" {
		t.Errorf("Reply = %+v", ex.Reply)
	}

	req := adapter.requests[0]
	if req.Prompt != "where do I begin?" || req.ExtractedCode != twoSum.UserCode {
		t.Errorf("request = %+v", req)
	}
	if !strings.Contains(req.SystemPrompt, twoSum.Statement) || !strings.Contains(req.SystemPrompt, "Java") {
		t.Error("system prompt should carry the problem statement and language")
	}

	page, _ := store.Fetch(ctx, twoSum.ID, 10, 0)
	if page.TotalCount != 2 {
		t.Fatalf("stored %d messages, want 2", page.TotalCount)
	}
	chrono := page.Chronological()
	if chrono[0].Role != llm.RoleUser || chrono[1].Role != llm.RoleAssistant {
		t.Errorf("stored order = %v, %v", chrono[0].Role, chrono[1].Role)
	}
}

func TestAsk_SendsRecentHistoryOldestFirst(t *testing.T) {
	a, adapter, store := setup(t, reply("ok"), WithHistoryWindow(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := a.Ask(ctx, fmt.Sprintf("q%d", i)); err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
	}

	if page, _ := store.Fetch(ctx, twoSum.ID, 0, 0); page.TotalCount != 6 {
		t.Fatalf("stored %d messages, want 6", page.TotalCount)
	}

	last := adapter.requests[2]
	if len(last.PriorMessages) != 3 {
		t.Fatalf("sent %d prior messages, want window of 3", len(last.PriorMessages))
	}
	// Window covers [assistant0, user1, assistant1]
	if last.PriorMessages[1].Text != "q1" || last.PriorMessages[2].Role != llm.RoleAssistant {
		t.Errorf("prior messages = %+v", last.PriorMessages)
	}
}

func TestAsk_ProviderErrorIsShownNotStored(t *testing.T) {
	a, _, store := setup(t, func(context.Context, llm.Request) llm.Result {
		return llm.Failure(llm.StatusError("openai", 401, "Incorrect API key provided", nil))
	})
	ctx := context.Background()

	ex, err := a.Ask(ctx, "help")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !errors.Is(ex.Err, llm.ErrAuth) {
		t.Errorf("Err = %v, want auth", ex.Err)
	}
	if !ex.Reply.Failed || ex.Reply.Role != llm.RoleAssistant || !strings.Contains(ex.Reply.Text, "Incorrect API key") {
		t.Errorf("Reply = %+v", ex.Reply)
	}

	if page, _ := store.Fetch(ctx, twoSum.ID, 10, 0); page.TotalCount != 0 {
		t.Errorf("failed exchange was persisted: %d messages", page.TotalCount)
	}
}

func TestAsk_DiscardedWhenSuperseded(t *testing.T) {
	started := make(chan struct{})
	a, _, store := setup(t, func(ctx context.Context, req llm.Request) llm.Result {
		if req.Prompt == "first" {
			close(started)
			<-ctx.Done()
			return llm.Failure(llm.ClassifyError("mock", ctx.Err()))
		}
		return llm.Success(llm.StructuredOutput{Feedback: "second answer"})
	})
	ctx := context.Background()

	first := make(chan Exchange, 1)
	go func() {
		ex, _ := a.Ask(ctx, "first")
		first <- ex
	}()
	<-started

	second, err := a.Ask(ctx, "second")
	if err != nil {
		t.Fatalf("Ask(second) error = %v", err)
	}

	ex := <-first
	if !ex.Discarded {
		t.Errorf("first exchange = %+v, want discarded", ex)
	}
	if second.Reply.Output == nil || second.Reply.Output.Feedback != "second answer" {
		t.Errorf("second exchange = %+v", second)
	}

	page, _ := store.Fetch(ctx, twoSum.ID, 10, 0)
	if page.TotalCount != 2 || page.Chronological()[0].Text != "second" {
		t.Errorf("history = %+v, want only the second exchange", page.Messages)
	}
}

func TestAsk_Errors(t *testing.T) {
	a, _, _ := setup(t, reply("x"))
	if _, err := a.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("blank prompt error = %v", err)
	}

	noModel := New(generation.New(llm.NewRegistry()), history.NewMemoryStore(), problem.StaticSource{Context: twoSum})
	if _, err := noModel.Ask(context.Background(), "hi"); !errors.Is(err, generation.ErrNoModel) {
		t.Errorf("no model error = %v", err)
	}

	badSource := New(generation.New(llm.NewRegistry()), history.NewMemoryStore(), &problem.FileSource{})
	if _, err := badSource.Ask(context.Background(), "hi"); !errors.Is(err, problem.ErrNoProblemFile) {
		t.Errorf("bad source error = %v", err)
	}
}

func TestClearAndHistory(t *testing.T) {
	a, _, _ := setup(t, reply("ok"))
	ctx := context.Background()
	_, _ = a.Ask(ctx, "one")

	page, err := a.History(ctx, 1, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if page.TotalCount != 2 || len(page.Messages) != 1 || page.Messages[0].Role != llm.RoleAssistant {
		t.Errorf("History() = %+v", page)
	}

	if err := a.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	page, _ = a.History(ctx, 10, 0)
	if page.TotalCount != 0 {
		t.Errorf("History() after Clear() = %d messages", page.TotalCount)
	}
}
