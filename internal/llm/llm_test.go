package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// MockAdapter is a test implementation of the Adapter interface
type MockAdapter struct {
	GenerateFunc func(ctx context.Context, req Request) Result
	APIKey       string
}

func (m *MockAdapter) Init(apiKey string) {
	m.APIKey = apiKey
}

func (m *MockAdapter) Generate(ctx context.Context, req Request) Result {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return Success(StructuredOutput{Feedback: "mock feedback"})
}

func testRequest() Request {
	return Request{
		Prompt:       "help",
		SystemPrompt: "You are a tutor. Reply in JSON.",
		PriorMessages: []Message{
			UserMessage("what is a hashmap?"),
			AssistantMessage(StructuredOutput{Feedback: "A key/value table.", Hints: []string{"think O(1)"}}),
			ErrorMessage(&Error{Kind: KindProvider, Message: "boom"}),
		},
		ExtractedCode: "int x=1;",
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantKind Kind
		feedback string
		hints    int
	}{
		{name: "flat object", text: `{"feedback":"Nice start","hints":["a","b"]}`, feedback: "Nice start", hints: 2},
		{name: "output envelope", text: `{"output":{"feedback":"Keep going","snippet":"x++"}}`, feedback: "Keep going"},
		{name: "fenced json", text: "```json\n{\"feedback\":\"fenced\"}\n```", feedback: "fenced"},
		{name: "surrounding prose", text: "Sure! {\"feedback\":\"prose\"} Hope that helps.", feedback: "prose"},
		{name: "not json", text: "I think you should use a loop.", wantKind: KindParse},
		{name: "broken json", text: `{"feedback": "oops"`, wantKind: KindParse},
		{name: "missing feedback", text: `{"hints":["only hints"]}`, wantKind: KindParse},
		{name: "blank feedback", text: `{"feedback":"   "}`, wantKind: KindParse},
		{name: "empty", text: "", wantKind: KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ParseOutput("test", tt.text)
			if tt.wantKind != 0 {
				if err == nil {
					t.Fatalf("ParseOutput(%q) expected %s, got %+v", tt.text, tt.wantKind, out)
				}
				if err.Kind != tt.wantKind {
					t.Errorf("ParseOutput(%q) kind = %s, want %s", tt.text, err.Kind, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOutput(%q) error = %v", tt.text, err)
			}
			if out.Feedback != tt.feedback {
				t.Errorf("Feedback = %q, want %q", out.Feedback, tt.feedback)
			}
			if out.Hints == nil {
				t.Error("Hints should default to an empty slice")
			}
			if len(out.Hints) != tt.hints {
				t.Errorf("len(Hints) = %d, want %d", len(out.Hints), tt.hints)
			}
		})
	}
}

func TestMessageJSON(t *testing.T) {
	original := []Message{
		UserMessage("hello"),
		AssistantMessage(StructuredOutput{Feedback: "hi", Hints: []string{"h1"}, Snippet: "x := 1", ProgrammingLanguage: "go"}),
		ErrorMessage(&Error{Kind: KindParse, Message: "bad"}),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"content":{"feedback":"hi"`) {
		t.Errorf("structured content should be encoded as an object: %s", data)
	}

	var decoded []Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("decoded %d messages, want 3", len(decoded))
	}
	if decoded[0].Text != "hello" || decoded[0].Role != RoleUser {
		t.Errorf("decoded[0] = %+v", decoded[0])
	}
	if decoded[1].Output == nil || decoded[1].Output.Snippet != "x := 1" {
		t.Errorf("decoded[1] = %+v", decoded[1])
	}
	if !decoded[2].Failed {
		t.Error("decoded[2] should keep the error flag")
	}

	var bad Message
	if err := json.Unmarshal([]byte(`{"role":"system","content":"x"}`), &bad); err == nil {
		t.Error("Unmarshal() should reject roles other than user and assistant")
	}
}

func TestResultValidate(t *testing.T) {
	if err := Success(StructuredOutput{Feedback: "ok"}).Validate(); err != nil {
		t.Errorf("Success().Validate() = %v", err)
	}
	if err := Failure(ErrProvider).Validate(); err != nil {
		t.Errorf("Failure().Validate() = %v", err)
	}
	if err := (Result{}).Validate(); err == nil {
		t.Error("empty result should not validate")
	}
	both := Result{Output: &StructuredOutput{Feedback: "x"}, Err: ErrParse}
	if err := both.Validate(); err == nil {
		t.Error("result with both variants should not validate")
	}
}

func TestErrorIs(t *testing.T) {
	err := StatusError("openai", http.StatusUnauthorized, "Incorrect API key provided", nil)

	if !errors.Is(err, ErrProvider) {
		t.Error("status error should match ErrProvider")
	}
	if !errors.Is(err, ErrAuth) {
		t.Error("401 should match ErrAuth")
	}
	if errors.Is(err, ErrRateLimit) {
		t.Error("401 should not match ErrRateLimit")
	}
	if errors.Is(err, ErrParse) {
		t.Error("provider error should not match ErrParse")
	}
	if !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("Error() = %q, should carry the vendor message", err.Error())
	}
}

func TestReasonForStatus(t *testing.T) {
	tests := map[int]Reason{
		401: ReasonAuth,
		403: ReasonAuth,
		429: ReasonRateLimit,
		504: ReasonTimeout,
		500: ReasonServer,
		503: ReasonServer,
		400: ReasonStatus,
		404: ReasonStatus,
	}
	for status, want := range tests {
		if got := ReasonForStatus(status); got != want {
			t.Errorf("ReasonForStatus(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError("x", context.Canceled); got.Kind != KindAbort {
		t.Errorf("context.Canceled kind = %s, want AbortError", got.Kind)
	}
	if got := ClassifyError("x", context.DeadlineExceeded); !errors.Is(got, ErrTimeout) {
		t.Errorf("context.DeadlineExceeded = %v, want timeout", got)
	}
	if got := ClassifyError("x", errors.New("connection refused")); !errors.Is(got, ErrNetwork) {
		t.Errorf("plain error = %v, want network", got)
	}
}

func TestRequestHistoryDropsErrors(t *testing.T) {
	history := testRequest().History()
	if len(history) != 2 {
		t.Fatalf("History() returned %d messages, want 2", len(history))
	}
	for _, msg := range history {
		if msg.Failed {
			t.Error("History() should not include error messages")
		}
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, id := range []string{"openai_3.5_turbo", "openai_4o", "gemini_1.5_pro", "groq_llama70b", "groq_llama90b", "github_gpt4o", "claude_sonnet"} {
		if _, ok := r.Lookup(id); !ok {
			t.Errorf("Lookup(%q) not found", id)
		}
	}
	if _, ok := r.Lookup("gpt-5"); ok {
		t.Error("Lookup() of unknown id should fail")
	}

	models := r.Models()
	if len(models) != len(Catalog) {
		t.Fatalf("Models() = %d entries, want %d", len(models), len(Catalog))
	}
	if models[0].ID != Catalog[0].ID {
		t.Errorf("Models() should keep registration order, got %q first", models[0].ID)
	}

	a, _ := r.Lookup("groq_llama70b")
	groq, ok := a.(*OpenAICompatible)
	if !ok || groq.Mode != FunctionCallMode || groq.BaseURL != GroqBaseURL {
		t.Errorf("groq adapter = %+v, want function-call mode against %s", a, GroqBaseURL)
	}
}

// openAIServer serves one canned chat completion and records the request
func openAIServer(t *testing.T, status int, body string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if captured != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chatCompletion(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]interface{}{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(data)
}

func TestOpenAI_Generate(t *testing.T) {
	var captured map[string]interface{}
	srv := openAIServer(t, http.StatusOK, chatCompletion(`{"output":{"feedback":"Use a hashmap 🚀","hints":["store indices"]}}`), &captured)

	adapter := NewOpenAI("gpt-4o")
	adapter.BaseURL = srv.URL
	adapter.Init("test-key")

	result := adapter.Generate(context.Background(), testRequest())
	if err := result.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if !result.OK() {
		t.Fatalf("Generate() error = %v", result.Err)
	}
	if result.Output.Feedback != "Use a hashmap 🚀" {
		t.Errorf("Feedback = %q", result.Output.Feedback)
	}

	format, _ := captured["response_format"].(map[string]interface{})
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", captured["response_format"])
	}

	msgs, _ := captured["messages"].([]interface{})
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want system + 2 prior + user", len(msgs))
	}
	first := msgs[0].(map[string]interface{})
	last := msgs[len(msgs)-1].(map[string]interface{})
	if first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
	if last["content"] != "User Prompt: help\n\nCode: int x=1;" {
		t.Errorf("last message content = %v", last["content"])
	}
}

func TestOpenAI_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *Error
	}{
		{
			name:   "bad key",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided: bad-key.","type":"invalid_request_error","code":"invalid_api_key"}}`,
			want:   ErrAuth,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			want:   ErrRateLimit,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"The server had an error","type":"server_error"}}`,
			want:   ErrProvider,
		},
		{
			name:   "malformed content",
			status: http.StatusOK,
			body:   chatCompletion("this is not json"),
			want:   ErrParse,
		},
		{
			name:   "missing feedback",
			status: http.StatusOK,
			body:   chatCompletion(`{"hints":["x"]}`),
			want:   ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := openAIServer(t, tt.status, tt.body, nil)
			adapter := NewOpenAI("gpt-3.5-turbo")
			adapter.BaseURL = srv.URL
			adapter.Init("bad-key")

			result := adapter.Generate(context.Background(), testRequest())
			if err := result.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if result.OK() {
				t.Fatalf("Generate() succeeded, want %v", tt.want)
			}
			if !errors.Is(result.Err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", result.Err, tt.want)
			}
		})
	}
}

func TestOpenAI_GenerateCancelled(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, chatCompletion(`{"feedback":"late"}`), nil)
	adapter := NewOpenAI("gpt-4o")
	adapter.BaseURL = srv.URL
	adapter.Init("key")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := adapter.Generate(ctx, testRequest())
	if !result.Aborted() {
		t.Errorf("Generate() with cancelled context = %+v, want AbortError", result.Err)
	}
}

func TestOpenAI_MissingKey(t *testing.T) {
	adapter := NewOpenAI("gpt-4o")
	result := adapter.Generate(context.Background(), testRequest())
	if !errors.Is(result.Err, ErrConfig) {
		t.Errorf("Generate() without key = %v, want ConfigError", result.Err)
	}
}

func TestGroq_FunctionCall(t *testing.T) {
	body, _ := json.Marshal(map[string]interface{}{
		"id":    "chatcmpl-2",
		"model": "llama-3.1-70b-versatile",
		"choices": []map[string]interface{}{{
			"index": 0,
			"message": map[string]interface{}{
				"role":    "assistant",
				"content": "",
				"tool_calls": []map[string]interface{}{{
					"id":   "call_1",
					"type": "function",
					"function": map[string]interface{}{
						"name":      OutputToolName,
						"arguments": `{"feedback":"Check the loop bounds","hints":["off by one?"],"snippet":"for i := 0; i < n; i++ {}","programmingLanguage":"go"}`,
					},
				}},
			},
			"finish_reason": "tool_calls",
		}},
	})

	var captured map[string]interface{}
	srv := openAIServer(t, http.StatusOK, string(body), &captured)
	adapter := NewGroq("llama-3.1-70b-versatile")
	adapter.BaseURL = srv.URL
	adapter.Init("gsk-test")

	result := adapter.Generate(context.Background(), testRequest())
	if !result.OK() {
		t.Fatalf("Generate() error = %v", result.Err)
	}
	if result.Output.ProgrammingLanguage != "go" || len(result.Output.Hints) != 1 {
		t.Errorf("Output = %+v", result.Output)
	}

	choice, _ := captured["tool_choice"].(map[string]interface{})
	fn, _ := choice["function"].(map[string]interface{})
	if fn["name"] != OutputToolName {
		t.Errorf("tool_choice = %v, want forced %s", captured["tool_choice"], OutputToolName)
	}
}

func TestAzureModels_FreeForm(t *testing.T) {
	var captured map[string]interface{}
	srv := openAIServer(t, http.StatusOK, chatCompletion("Here you go:\n```json\n{\"feedback\":\"Almost there\"}\n```"), &captured)
	adapter := NewAzureModels("gpt-4o")
	adapter.BaseURL = srv.URL
	adapter.Init("ghp_test")

	result := adapter.Generate(context.Background(), testRequest())
	if !result.OK() {
		t.Fatalf("Generate() error = %v", result.Err)
	}
	if _, ok := captured["response_format"]; ok {
		t.Error("free-form mode should not send response_format")
	}
	if captured["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v, want 1000", captured["max_tokens"])
	}
}

func TestAnthropic_Generate(t *testing.T) {
	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","content":[{"type":"tool_use","id":"tu_1","name":"provide_guidance","input":{"feedback":"Think about sorting first","hints":["two pointers"]}}],"stop_reason":"tool_use"}`)
	}))
	defer srv.Close()

	adapter := NewAnthropic("")
	adapter.BaseURL = srv.URL
	adapter.Init("sk-ant-test")

	result := adapter.Generate(context.Background(), testRequest())
	if !result.OK() {
		t.Fatalf("Generate() error = %v", result.Err)
	}
	if result.Output.Feedback != "Think about sorting first" {
		t.Errorf("Feedback = %q", result.Output.Feedback)
	}
	if captured.ToolChoice == nil || captured.ToolChoice.Name != OutputToolName {
		t.Errorf("tool_choice = %+v, want forced %s", captured.ToolChoice, OutputToolName)
	}
	if captured.System == "" {
		t.Error("system prompt should be sent in the system field")
	}
	if n := len(captured.Messages); n == 0 || captured.Messages[0].Role != "user" || captured.Messages[n-1].Role != "user" {
		t.Errorf("messages should start and end with a user turn: %+v", captured.Messages)
	}
}

func TestAnthropic_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests has exceeded your rate limit"}}`)
	}))
	defer srv.Close()

	adapter := NewAnthropic("")
	adapter.BaseURL = srv.URL
	adapter.Init("sk-ant-test")

	result := adapter.Generate(context.Background(), testRequest())
	if !errors.Is(result.Err, ErrRateLimit) {
		t.Errorf("Generate() error = %v, want rate limit", result.Err)
	}
	if result.Err.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", result.Err.StatusCode)
	}
}

func TestAnthropic_convertMessagesAlternates(t *testing.T) {
	adapter := NewAnthropic("")
	req := Request{
		Prompt: "next",
		PriorMessages: []Message{
			AssistantMessage(StructuredOutput{Feedback: "orphan"}),
			UserMessage("a"),
			UserMessage("b"),
			AssistantMessage(StructuredOutput{Feedback: "c"}),
		},
	}

	msgs := adapter.convertMessages(req)
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Role == msgs[i-1].Role {
			t.Fatalf("messages %d and %d share role %q", i-1, i, msgs[i].Role)
		}
	}
	if msgs[0].Role != "user" {
		t.Errorf("first role = %q, want user", msgs[0].Role)
	}
}

func geminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGemini_Generate(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"feedback\":\"Try recursion\",\"hints\":[\"base case\"]}"}]},"finishReason":"STOP"}]}`)

	adapter := NewGemini("gemini-1.5-pro-latest")
	adapter.BaseURL = srv.URL + "/"
	adapter.Init("AIza-test")

	result := adapter.Generate(context.Background(), testRequest())
	if !result.OK() {
		t.Fatalf("Generate() error = %v", result.Err)
	}
	if result.Output.Feedback != "Try recursion" {
		t.Errorf("Feedback = %q", result.Output.Feedback)
	}
}

func TestGemini_GenerateError(t *testing.T) {
	srv := geminiServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`)

	adapter := NewGemini("gemini-1.5-pro-latest")
	adapter.BaseURL = srv.URL + "/"
	adapter.Init("bad-key")

	result := adapter.Generate(context.Background(), testRequest())
	if err := result.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if !errors.Is(result.Err, ErrProvider) {
		t.Errorf("Generate() error = %v, want ProviderError", result.Err)
	}
}

func TestConvertContents(t *testing.T) {
	g := NewGemini("gemini-1.5-pro-latest")
	contents := g.convertContents(testRequest())
	if len(contents) != 3 {
		t.Fatalf("convertContents() = %d contents, want 3", len(contents))
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant turn role = %q, want model", contents[1].Role)
	}
}
