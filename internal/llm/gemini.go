package llm

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// Gemini implements Adapter using the Gemini API with a response schema
type Gemini struct {
	credentials

	Model   string
	BaseURL string
	client  *http.Client
}

// NewGemini creates a new Gemini adapter
func NewGemini(model string) *Gemini {
	return &Gemini{
		Model:  model,
		client: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// convertContents converts prior messages and the user turn to Gemini contents
func (g *Gemini) convertContents(req Request) []*genai.Content {
	history := req.History()
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content(), genai.Role(role)))
	}
	contents = append(contents, genai.NewContentFromText(req.UserTurn(), genai.RoleUser))
	return contents
}

// outputSchema mirrors OutputSchema in Gemini's schema type
func outputSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"feedback":            {Type: genai.TypeString},
			"hints":               {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"snippet":             {Type: genai.TypeString},
			"programmingLanguage": {Type: genai.TypeString},
		},
		Required: []string{"feedback"},
	}
}

// Generate calls generateContent in JSON mode and parses the reply
func (g *Gemini) Generate(ctx context.Context, req Request) Result {
	apiKey := g.key()
	if apiKey == "" {
		return Failure(&Error{Kind: KindConfig, Vendor: "gemini", Message: "API key not configured"})
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.client,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.BaseURL},
	})
	if err != nil {
		return Failure(ClassifyError("gemini", err))
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   outputSchema(),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, g.convertContents(req), config)
	if err != nil {
		return Failure(g.classify(err))
	}

	out, perr := ParseOutput("gemini", resp.Text())
	if perr != nil {
		return Failure(perr)
	}
	return Success(out)
}

func (g *Gemini) classify(err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassifyError("gemini", err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return StatusError("gemini", apiErr.Code, apiErr.Message, err)
	}
	return ClassifyError("gemini", err)
}

// ModelName returns the model being used
func (g *Gemini) ModelName() string {
	return g.Model
}

var _ Adapter = (*Gemini)(nil)
