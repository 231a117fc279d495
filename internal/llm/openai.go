package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Base URLs of the OpenAI-compatible vendors
const (
	OpenAIBaseURL      = "https://api.openai.com/v1"
	GroqBaseURL        = "https://api.groq.com/openai/v1"
	AzureModelsBaseURL = "https://models.inference.ai.azure.com"
)

const defaultHTTPTimeout = 2 * time.Minute

// OutputMode selects how an OpenAI-compatible vendor is made to return structure
type OutputMode int

const (
	// JSONObjectMode uses response_format json_object and parses the text
	JSONObjectMode OutputMode = iota
	// FunctionCallMode forces a call to the output tool with a JSON schema
	FunctionCallMode
	// FreeFormMode sends a plain completion and parses whatever comes back
	FreeFormMode
)

// OpenAICompatible implements Adapter for vendors speaking the OpenAI chat API
type OpenAICompatible struct {
	credentials

	Vendor  string
	Model   string
	BaseURL string
	Mode    OutputMode

	// Sampling overrides, zero means vendor default
	Temperature float32
	TopP        float32
	MaxTokens   int

	client *http.Client
}

// NewOpenAI creates an adapter for the OpenAI API using JSON mode
func NewOpenAI(model string) *OpenAICompatible {
	return &OpenAICompatible{
		Vendor:  "openai",
		Model:   model,
		BaseURL: OpenAIBaseURL,
		Mode:    JSONObjectMode,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewGroq creates an adapter for Groq using forced function calling
func NewGroq(model string) *OpenAICompatible {
	return &OpenAICompatible{
		Vendor:  "groq",
		Model:   model,
		BaseURL: GroqBaseURL,
		Mode:    FunctionCallMode,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewAzureModels creates an adapter for the Azure model catalog (GitHub Models)
func NewAzureModels(model string) *OpenAICompatible {
	return &OpenAICompatible{
		Vendor:      "github",
		Model:       model,
		BaseURL:     AzureModelsBaseURL,
		Mode:        FreeFormMode,
		Temperature: 1.0,
		TopP:        1.0,
		MaxTokens:   1000,
		client:      &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// convertMessages converts a request to OpenAI chat messages
func (o *OpenAICompatible) convertMessages(req Request) []openai.ChatCompletionMessage {
	history := req.History()
	result := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	result = append(result, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		result = append(result, openai.ChatCompletionMessage{Role: role, Content: msg.Content()})
	}
	result = append(result, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserTurn(),
	})
	return result
}

func (o *OpenAICompatible) buildRequest(req Request) openai.ChatCompletionRequest {
	chatReq := openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    o.convertMessages(req),
		Temperature: o.Temperature,
		TopP:        o.TopP,
		MaxTokens:   o.MaxTokens,
	}

	switch o.Mode {
	case JSONObjectMode:
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	case FunctionCallMode:
		chatReq.Tools = []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        OutputToolName,
				Description: OutputToolDescription,
				Parameters:  OutputSchema(),
			},
		}}
		chatReq.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: OutputToolName},
		}
	}
	return chatReq
}

// Generate calls the chat completions endpoint and normalizes the reply
func (o *OpenAICompatible) Generate(ctx context.Context, req Request) Result {
	apiKey := o.key()
	if apiKey == "" {
		return Failure(&Error{Kind: KindConfig, Vendor: o.Vendor, Message: "API key not configured"})
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = o.BaseURL
	if o.client != nil {
		cfg.HTTPClient = o.client
	}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, o.buildRequest(req))
	if err != nil {
		return Failure(o.classify(err))
	}
	if len(resp.Choices) == 0 {
		return Failure(NewParseError(o.Vendor, "no response choices returned", nil))
	}

	msg := resp.Choices[0].Message
	if o.Mode == FunctionCallMode && len(msg.ToolCalls) > 0 {
		out, perr := DecodeOutput(o.Vendor, []byte(msg.ToolCalls[0].Function.Arguments))
		if perr != nil {
			return Failure(perr)
		}
		return Success(out)
	}

	out, perr := ParseOutput(o.Vendor, msg.Content)
	if perr != nil {
		return Failure(perr)
	}
	return Success(out)
}

// classify unwraps go-openai error types before falling back to transport errors
func (o *OpenAICompatible) classify(err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassifyError(o.Vendor, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return StatusError(o.Vendor, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		message := ""
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		return StatusError(o.Vendor, reqErr.HTTPStatusCode, message, err)
	}

	return ClassifyError(o.Vendor, err)
}

// ModelName returns the model being used
func (o *OpenAICompatible) ModelName() string {
	return o.Model
}

var _ Adapter = (*OpenAICompatible)(nil)
