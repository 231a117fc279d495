package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole accepts only the two chat roles
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// StructuredOutput is the normalized guidance every adapter produces
type StructuredOutput struct {
	Feedback            string   `json:"feedback"`
	Hints               []string `json:"hints"`
	Snippet             string   `json:"snippet,omitempty"`
	ProgrammingLanguage string   `json:"programmingLanguage,omitempty"`
}

// Message is one turn of a conversation. Content is either Text or Output.
type Message struct {
	Role   Role
	Text   string
	Output *StructuredOutput

	// Failed marks an assistant message that reports a generation error
	Failed bool
}

// UserMessage creates a user-role text message
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantMessage creates an assistant-role message carrying structured output
func AssistantMessage(out StructuredOutput) Message {
	return Message{Role: RoleAssistant, Output: &out}
}

// ErrorMessage creates the assistant-role message shown when generation fails
func ErrorMessage(err *Error) Message {
	return Message{Role: RoleAssistant, Text: err.Error(), Failed: true}
}

// Content returns the message as plain text for vendor requests.
// Structured output is re-encoded as the JSON the model originally produced.
func (m Message) Content() string {
	if m.Output == nil {
		return m.Text
	}
	data, err := json.Marshal(m.Output)
	if err != nil {
		return m.Output.Feedback
	}
	return string(data)
}

type messageJSON struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
	Error   bool            `json:"error,omitempty"`
}

// MarshalJSON encodes content as a string or as a StructuredOutput object
func (m Message) MarshalJSON() ([]byte, error) {
	var content []byte
	var err error
	if m.Output != nil {
		content, err = json.Marshal(m.Output)
	} else {
		content, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{Role: m.Role, Content: content, Error: m.Failed})
}

// UnmarshalJSON decodes the form produced by MarshalJSON
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role, err := ParseRole(string(raw.Role))
	if err != nil {
		return err
	}

	*m = Message{Role: role, Failed: raw.Error}
	content := bytes.TrimSpace(raw.Content)
	if len(content) > 0 && content[0] == '{' {
		var out StructuredOutput
		if err := json.Unmarshal(content, &out); err != nil {
			return fmt.Errorf("decode structured content: %w", err)
		}
		m.Output = &out
		return nil
	}
	if len(content) == 0 || string(content) == "null" {
		return nil
	}
	return json.Unmarshal(content, &m.Text)
}

// Request is a single generation request. The cancellation token is the
// context passed next to it.
type Request struct {
	Prompt        string
	SystemPrompt  string
	PriorMessages []Message
	ExtractedCode string
}

// UserTurn is the final user message every adapter sends
func (r Request) UserTurn() string {
	return fmt.Sprintf("User Prompt: %s\n\nCode: %s", r.Prompt, r.ExtractedCode)
}

// History returns prior messages that may be replayed to a vendor.
// Error notices are dropped since the model never produced them.
func (r Request) History() []Message {
	result := make([]Message, 0, len(r.PriorMessages))
	for _, msg := range r.PriorMessages {
		if msg.Failed || strings.TrimSpace(msg.Content()) == "" {
			continue
		}
		result = append(result, msg)
	}
	return result
}

// Result is exactly one of a successful output or an error
type Result struct {
	Output *StructuredOutput
	Err    *Error
}

// Success wraps a parsed output
func Success(out StructuredOutput) Result {
	if out.Hints == nil {
		out.Hints = []string{}
	}
	return Result{Output: &out}
}

// Failure wraps a generation error
func Failure(err *Error) Result {
	return Result{Err: err}
}

// OK reports whether the result carries output
func (r Result) OK() bool {
	return r.Output != nil && r.Err == nil
}

// Aborted reports whether the result was cancelled or superseded
func (r Result) Aborted() bool {
	return r.Err != nil && r.Err.Kind == KindAbort
}

// Validate checks that exactly one variant is populated
func (r Result) Validate() error {
	switch {
	case r.Output != nil && r.Err != nil:
		return fmt.Errorf("result has both output and error")
	case r.Output == nil && r.Err == nil:
		return fmt.Errorf("result has neither output nor error")
	case r.Output != nil && strings.TrimSpace(r.Output.Feedback) == "":
		return fmt.Errorf("result output is missing feedback")
	}
	return nil
}
