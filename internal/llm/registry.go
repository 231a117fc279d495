package llm

import (
	"fmt"
	"sort"
)

// Vendors an API key can belong to
const (
	VendorOpenAI    = "openai"
	VendorGemini    = "gemini"
	VendorGroq      = "groq"
	VendorGitHub    = "github"
	VendorAnthropic = "anthropic"
)

// Model describes one selectable model
type Model struct {
	ID      string // registry key, e.g. "openai_4o"
	Vendor  string // which API key it needs
	Name    string // vendor model name
	Display string
}

// Registry maps model ids to adapters. It is built once and never mutated
// after it is handed to a coordinator.
type Registry struct {
	adapters map[string]Adapter
	models   map[string]Model
	order    []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		models:   make(map[string]Model),
	}
}

// Register adds a model and its adapter
func (r *Registry) Register(model Model, adapter Adapter) {
	if _, exists := r.adapters[model.ID]; !exists {
		r.order = append(r.order, model.ID)
	}
	r.adapters[model.ID] = adapter
	r.models[model.ID] = model
}

// Lookup returns the adapter bound to a model id
func (r *Registry) Lookup(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// Model returns the catalog entry for a model id
func (r *Registry) Model(id string) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Models returns all models in registration order
func (r *Registry) Models() []Model {
	result := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.models[id])
	}
	return result
}

// IDs returns the sorted model ids
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.order))
	ids = append(ids, r.order...)
	sort.Strings(ids)
	return ids
}

// Catalog lists the built-in models
var Catalog = []Model{
	{ID: "openai_3.5_turbo", Vendor: VendorOpenAI, Name: "gpt-3.5-turbo", Display: "GPT-3.5 Turbo"},
	{ID: "openai_4o", Vendor: VendorOpenAI, Name: "gpt-4o", Display: "GPT-4 Optimized"},
	{ID: "gemini_1.5_pro", Vendor: VendorGemini, Name: "gemini-1.5-pro-latest", Display: "Gemini 1.5 Pro (Latest)"},
	{ID: "groq_llama70b", Vendor: VendorGroq, Name: "llama-3.1-70b-versatile", Display: "Llama 3.1 70B"},
	{ID: "groq_llama90b", Vendor: VendorGroq, Name: "llama-3.2-90b-vision-preview", Display: "Llama 3.2 90B"},
	{ID: "github_gpt4o", Vendor: VendorGitHub, Name: "gpt-4o", Display: "GitHub GPT-4o"},
	{ID: "claude_sonnet", Vendor: VendorAnthropic, Name: "claude-sonnet-4-20250514", Display: "Claude Sonnet 4"},
}

// NewAdapter constructs the adapter for a catalog model
func NewAdapter(m Model) (Adapter, error) {
	switch m.Vendor {
	case VendorOpenAI:
		return NewOpenAI(m.Name), nil
	case VendorGroq:
		return NewGroq(m.Name), nil
	case VendorGitHub:
		return NewAzureModels(m.Name), nil
	case VendorGemini:
		return NewGemini(m.Name), nil
	case VendorAnthropic:
		return NewAnthropic(m.Name), nil
	default:
		return nil, fmt.Errorf("unknown vendor %q for model %s", m.Vendor, m.ID)
	}
}

// DefaultRegistry builds a registry with one adapter per catalog model
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range Catalog {
		adapter, err := NewAdapter(m)
		if err != nil {
			panic(err)
		}
		r.Register(m, adapter)
	}
	return r
}
