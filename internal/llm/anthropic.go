// Package llm - Anthropic adapter
// Native Claude API with a forced tool call for structured output
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// Anthropic implements Adapter using the Claude Messages API
type Anthropic struct {
	credentials

	Model     string
	BaseURL   string
	MaxTokens int
	client    *http.Client
}

// Anthropic API types
type anthropicRequest struct {
	Model      string               `json:"model"`
	MaxTokens  int                  `json:"max_tokens"`
	System     string               `json:"system,omitempty"`
	Messages   []anthropicMessage   `json:"messages"`
	Tools      []anthropicTool      `json:"tools,omitempty"`
	ToolChoice *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`            // "text", "tool_use"
	Text  string          `json:"text,omitempty"`  // for text blocks
	Name  string          `json:"name,omitempty"`  // for tool_use blocks
	Input json.RawMessage `json:"input,omitempty"` // for tool_use blocks
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"` // "tool"
	Name string `json:"name"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Error      *anthropicError         `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropic creates a new Anthropic adapter
func NewAnthropic(model string) *Anthropic {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Anthropic{
		Model:     model,
		BaseURL:   AnthropicBaseURL,
		MaxTokens: 4096,
		client:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// convertMessages converts prior messages and the user turn to Anthropic format.
// Consecutive same-role turns are merged since the API requires alternation.
func (a *Anthropic) convertMessages(req Request) []anthropicMessage {
	var msgs []anthropicMessage
	push := func(role, content string) {
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content += "\n\n" + content
			return
		}
		msgs = append(msgs, anthropicMessage{Role: role, Content: content})
	}

	for _, msg := range req.History() {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "assistant"
		}
		// The first turn must come from the user
		if len(msgs) == 0 && role == "assistant" {
			continue
		}
		push(role, msg.Content())
	}
	push("user", req.UserTurn())
	return msgs
}

// Generate calls the Messages API and returns the forced tool input
func (a *Anthropic) Generate(ctx context.Context, req Request) Result {
	apiKey := a.key()
	if apiKey == "" {
		return Failure(&Error{Kind: KindConfig, Vendor: "anthropic", Message: "API key not configured"})
	}

	reqBody := anthropicRequest{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  a.convertMessages(req),
		Tools: []anthropicTool{{
			Name:        OutputToolName,
			Description: OutputToolDescription,
			InputSchema: OutputSchema(),
		}},
		ToolChoice: &anthropicToolChoice{Type: "tool", Name: OutputToolName},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return Failure(NewParseError("anthropic", "failed to marshal request", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return Failure(ClassifyError("anthropic", fmt.Errorf("failed to create request: %w", err)))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Failure(ClassifyError("anthropic", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure(ClassifyError("anthropic", fmt.Errorf("failed to read response: %w", err)))
	}

	var anthropicResp anthropicResponse
	decodeErr := json.Unmarshal(body, &anthropicResp)

	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(body))
		if decodeErr == nil && anthropicResp.Error != nil {
			message = anthropicResp.Error.Message
		}
		return Failure(StatusError("anthropic", resp.StatusCode, message, nil))
	}
	if decodeErr != nil {
		return Failure(NewParseError("anthropic", "failed to parse response", decodeErr))
	}
	if anthropicResp.Error != nil {
		return Failure(&Error{Kind: KindProvider, Reason: ReasonStatus, Vendor: "anthropic", Message: anthropicResp.Error.Message})
	}

	var text strings.Builder
	for _, block := range anthropicResp.Content {
		switch block.Type {
		case "tool_use":
			if block.Name != OutputToolName {
				continue
			}
			out, perr := DecodeOutput("anthropic", block.Input)
			if perr != nil {
				return Failure(perr)
			}
			return Success(out)
		case "text":
			text.WriteString(block.Text)
		}
	}

	// No tool call; fall back to whatever JSON the text holds
	out, perr := ParseOutput("anthropic", text.String())
	if perr != nil {
		return Failure(perr)
	}
	return Success(out)
}

// ModelName returns the model being used
func (a *Anthropic) ModelName() string {
	return a.Model
}

var _ Adapter = (*Anthropic)(nil)
