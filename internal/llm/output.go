package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// Tool used by vendors that constrain output through function calling
const (
	OutputToolName        = "provide_guidance"
	OutputToolDescription = "Return feedback, hints and an optional code snippet for the student's current attempt."
)

var errMissingFeedback = errors.New("output is missing required field \"feedback\"")

// OutputSchema returns the JSON schema of StructuredOutput
func OutputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"feedback": map[string]interface{}{
				"type":        "string",
				"description": "Short, friendly feedback on the user's code and question.",
			},
			"hints": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Crisp hints, most useful first.",
			},
			"snippet": map[string]interface{}{
				"type":        "string",
				"description": "Optional small code snippet, code only.",
			},
			"programmingLanguage": map[string]interface{}{
				"type":        "string",
				"description": "Language of the snippet.",
			},
		},
		"required": []string{"feedback"},
	}
}

// ParseOutput extracts a StructuredOutput from model text. It tolerates
// markdown fences, surrounding prose and the {"output": {...}} envelope.
func ParseOutput(vendor, text string) (StructuredOutput, *Error) {
	body := extractJSONObject(text)
	if body == "" {
		return StructuredOutput{}, NewParseError(vendor, "response contains no JSON object", nil)
	}

	var envelope struct {
		Output *json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return StructuredOutput{}, NewParseError(vendor, "response is not valid JSON", err)
	}

	raw := []byte(body)
	if envelope.Output != nil {
		raw = *envelope.Output
	}
	return decodeOutput(vendor, raw)
}

// DecodeOutput decodes JSON that is expected to be the output object itself,
// such as function call arguments.
func DecodeOutput(vendor string, raw []byte) (StructuredOutput, *Error) {
	return decodeOutput(vendor, raw)
}

func decodeOutput(vendor string, raw []byte) (StructuredOutput, *Error) {
	var out StructuredOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return StructuredOutput{}, NewParseError(vendor, "output does not match the expected shape", err)
	}
	if strings.TrimSpace(out.Feedback) == "" {
		return StructuredOutput{}, NewParseError(vendor, errMissingFeedback.Error(), errMissingFeedback)
	}
	if out.Hints == nil {
		out.Hints = []string{}
	}
	return out, nil
}

// extractJSONObject returns the outermost {...} span of text, or ""
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
