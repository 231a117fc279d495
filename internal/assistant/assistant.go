// Package assistant runs one chat turn end to end: snapshot the problem,
// load recent history, generate, and persist the exchange.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simonyos/whisper/internal/generation"
	"github.com/simonyos/whisper/internal/history"
	"github.com/simonyos/whisper/internal/llm"
	"github.com/simonyos/whisper/internal/problem"
	"github.com/simonyos/whisper/internal/prompts"
)

// DefaultHistoryWindow is how many stored messages are replayed to the model
const DefaultHistoryWindow = 20

var ErrEmptyPrompt = errors.New("prompt must not be empty")

// Exchange is the outcome of one Ask
type Exchange struct {
	ProblemID string
	Language  string
	User      llm.Message

	// Reply is the assistant output, or a Failed message describing the error
	Reply llm.Message
	Err   *llm.Error

	// Discarded is set when the generation was stopped or superseded.
	// Nothing should be shown or stored for it.
	Discarded bool

	// PersistErr is set when the reply could not be written to history
	PersistErr error
}

// Assistant ties the coordinator, the history store and a problem source together
type Assistant struct {
	coordinator *generation.Coordinator
	store       history.Store
	source      problem.Source
	prompts     *prompts.PromptBuilder
	window      int
	logger      *zap.Logger
}

// Option configures an Assistant
type Option func(*Assistant)

// WithHistoryWindow limits how many prior messages are sent with a prompt
func WithHistoryWindow(n int) Option {
	return func(a *Assistant) {
		if n >= 0 {
			a.window = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithPromptBuilder replaces the default system prompt builder
func WithPromptBuilder(b *prompts.PromptBuilder) Option {
	return func(a *Assistant) {
		if b != nil {
			a.prompts = b
		}
	}
}

// New creates an assistant
func New(coordinator *generation.Coordinator, store history.Store, source problem.Source, opts ...Option) *Assistant {
	a := &Assistant{
		coordinator: coordinator,
		store:       store,
		source:      source,
		prompts:     prompts.NewPromptBuilder(),
		window:      DefaultHistoryWindow,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask sends prompt with the current problem context. Provider and parse
// failures come back inside the Exchange; the returned error is reserved
// for setup problems such as a missing model or unreadable problem file.
func (a *Assistant) Ask(ctx context.Context, prompt string) (Exchange, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Exchange{}, ErrEmptyPrompt
	}

	snap, err := a.source.Snapshot()
	if err != nil {
		return Exchange{}, fmt.Errorf("load problem context: %w", err)
	}

	log := a.logger.With(zap.String("problem", snap.ID))
	ex := Exchange{ProblemID: snap.ID, Language: problem.LanguageLabel(snap.Language), User: llm.UserMessage(prompt)}

	var prior []llm.Message
	if a.window > 0 {
		page, err := a.store.Fetch(ctx, snap.ID, a.window, 0)
		if err != nil {
			log.Warn("failed to load history, continuing without it", zap.Error(err))
		} else {
			prior = page.Chronological()
		}
	}

	result, err := a.coordinator.Generate(ctx, llm.Request{
		Prompt:        prompt,
		SystemPrompt:  a.prompts.Render(snap),
		PriorMessages: prior,
		ExtractedCode: snap.UserCode,
	})
	if err != nil {
		return Exchange{}, err
	}

	switch {
	case result.Aborted():
		ex.Discarded = true
		return ex, nil
	case result.Err != nil:
		ex.Err = result.Err
		ex.Reply = llm.ErrorMessage(result.Err)
		return ex, nil
	}

	ex.Reply = llm.AssistantMessage(*result.Output)
	// The store is keyed by the problem the prompt was sent for, even if
	// the user moved on while the reply was in flight
	if err := a.store.Append(context.WithoutCancel(ctx), snap.ID, []llm.Message{ex.User, ex.Reply}); err != nil {
		log.Error("failed to persist exchange", zap.Error(err))
		ex.PersistErr = err
	}
	return ex, nil
}

// Problem returns a fresh snapshot of the current problem
func (a *Assistant) Problem() (problem.Context, error) {
	return a.source.Snapshot()
}

// ProblemID returns the id of the current problem
func (a *Assistant) ProblemID() (string, error) {
	snap, err := a.source.Snapshot()
	if err != nil {
		return "", err
	}
	return snap.ID, nil
}

// History returns a page of the current problem's history
func (a *Assistant) History(ctx context.Context, limit, offset int) (history.Page, error) {
	id, err := a.ProblemID()
	if err != nil {
		return history.Page{}, fmt.Errorf("load problem context: %w", err)
	}
	return a.store.Fetch(ctx, id, limit, offset)
}

// Clear deletes the current problem's history
func (a *Assistant) Clear(ctx context.Context) error {
	id, err := a.ProblemID()
	if err != nil {
		return fmt.Errorf("load problem context: %w", err)
	}
	a.logger.Info("clearing history", zap.String("problem", id))
	return a.store.Delete(ctx, id)
}

// Stop cancels an in-flight Ask
func (a *Assistant) Stop() bool {
	return a.coordinator.Stop()
}

// SwitchModel rebinds the coordinator to another model
func (a *Assistant) SwitchModel(modelID, apiKey string) error {
	return a.coordinator.SelectModel(modelID, apiKey)
}

// ModelID returns the bound model id
func (a *Assistant) ModelID() string {
	return a.coordinator.ModelID()
}

// Generating reports whether an Ask is in flight
func (a *Assistant) Generating() bool {
	return a.coordinator.Generating()
}
