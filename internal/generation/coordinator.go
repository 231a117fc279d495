// Package generation owns the lifecycle of LLM requests: which model is
// bound, which request is current, and which results are stale.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simonyos/whisper/internal/llm"
)

// DefaultTimeout bounds a single generation
const DefaultTimeout = 2 * time.Minute

var (
	ErrUnknownModel = errors.New("unknown model")
	ErrMissingKey   = errors.New("missing API key")
	ErrNoModel      = errors.New("no model selected")
	ErrSuperseded   = errors.New("generation superseded by a newer request")
	ErrStopped      = errors.New("generation stopped")
)

// Session is one Generate call. Only the current session may deliver a result.
type Session struct {
	ID uint64

	ctx    context.Context
	cancel context.CancelCauseFunc
	owner  *Coordinator
}

// IsCurrent reports whether the session is still the one a result is expected from
func (s *Session) IsCurrent() bool {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.owner.current == s
}

// Coordinator binds a model to an adapter and runs at most one live
// generation, cancelling the previous one whenever a new one starts.
type Coordinator struct {
	registry *llm.Registry
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	config  *llm.ProviderConfig
	adapter llm.Adapter
	current *Session
	nextID  uint64
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithTimeout overrides the per-generation deadline
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for session lifecycle events
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a coordinator over a registry. No model is selected yet.
func New(registry *llm.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectModel binds modelID and initializes its adapter with apiKey.
// The previous ProviderConfig is replaced wholesale; an in-flight
// generation keeps running against the adapter it started with.
func (c *Coordinator) SelectModel(modelID, apiKey string) error {
	adapter, ok := c.registry.Lookup(modelID)
	if !ok {
		return llm.NewConfigError(fmt.Errorf("%w: %q", ErrUnknownModel, modelID))
	}
	if strings.TrimSpace(apiKey) == "" {
		return llm.NewConfigError(fmt.Errorf("%w for model %s", ErrMissingKey, modelID))
	}

	adapter.Init(apiKey)

	c.mu.Lock()
	c.config = &llm.ProviderConfig{ModelID: modelID, APIKey: apiKey}
	c.adapter = adapter
	c.mu.Unlock()

	c.logger.Info("model selected", zap.String("model", modelID))
	return nil
}

// ModelID returns the bound model id, or "" when none is selected
func (c *Coordinator) ModelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config == nil {
		return ""
	}
	return c.config.ModelID
}

// Generating reports whether a session is in flight
func (c *Coordinator) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Stop cancels the in-flight session, if any. Its Generate call returns
// an AbortError wrapping ErrStopped.
func (c *Coordinator) Stop() bool {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s == nil {
		return false
	}
	s.cancel(ErrStopped)
	c.logger.Info("generation stopped", zap.Uint64("session", s.ID))
	return true
}

// Generate runs req against the bound adapter. Any session already in
// flight is cancelled first. The returned Result always holds exactly one
// of output or error; an AbortError means the caller must ignore it.
// The Go error is only set when no model is selected.
func (c *Coordinator) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	s, adapter, err := c.begin(ctx)
	if err != nil {
		return llm.Result{}, err
	}
	defer s.cancel(nil)

	runCtx, cancelRun := context.WithTimeout(s.ctx, c.timeout)
	started := time.Now()
	result := adapter.Generate(runCtx, req)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded) && s.ctx.Err() == nil
	cancelRun()

	if !c.finish(s) {
		cause := context.Cause(s.ctx)
		if errors.Is(cause, ErrStopped) {
			return llm.Failure(&llm.Error{Kind: llm.KindAbort, Message: "generation stopped", Err: ErrStopped}), nil
		}
		c.logger.Debug("discarding stale result", zap.Uint64("session", s.ID))
		return llm.Failure(&llm.Error{Kind: llm.KindAbort, Message: "generation superseded", Err: ErrSuperseded}), nil
	}

	result = c.normalize(s, result, timedOut)
	fields := []zap.Field{
		zap.Uint64("session", s.ID),
		zap.Duration("elapsed", time.Since(started)),
	}
	if result.Err != nil {
		c.logger.Warn("generation failed", append(fields, zap.Error(result.Err))...)
	} else {
		c.logger.Debug("generation finished", fields...)
	}
	return result, nil
}

// begin cancels the previous session and installs a new current one
func (c *Coordinator) begin(ctx context.Context) (*Session, llm.Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.adapter == nil {
		return nil, nil, llm.NewConfigError(ErrNoModel)
	}

	if prev := c.current; prev != nil {
		prev.cancel(ErrSuperseded)
		c.logger.Debug("superseding session", zap.Uint64("session", prev.ID))
	}

	c.nextID++
	sctx, cancel := context.WithCancelCause(ctx)
	s := &Session{ID: c.nextID, ctx: sctx, cancel: cancel, owner: c}
	c.current = s

	c.logger.Debug("generation started",
		zap.Uint64("session", s.ID),
		zap.String("model", c.config.ModelID),
	)
	return s, c.adapter, nil
}

// finish atomically checks whether s is current and clears it if so
func (c *Coordinator) finish(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s {
		return false
	}
	c.current = nil
	return true
}

// normalize maps context outcomes onto the error taxonomy and guards the
// one-of invariant against a misbehaving adapter
func (c *Coordinator) normalize(s *Session, result llm.Result, timedOut bool) llm.Result {
	if result.OK() {
		if err := result.Validate(); err != nil {
			return llm.Failure(llm.NewParseError("", err.Error(), err))
		}
		return result
	}

	switch {
	case timedOut:
		return llm.Failure(&llm.Error{
			Kind:    llm.KindProvider,
			Reason:  llm.ReasonTimeout,
			Message: fmt.Sprintf("no response within %s", c.timeout),
			Err:     context.DeadlineExceeded,
		})
	case s.ctx.Err() != nil:
		return llm.Failure(llm.NewAbortError(context.Cause(s.ctx)))
	case result.Err == nil:
		err := errors.New("adapter returned an empty result")
		return llm.Failure(llm.NewParseError("", err.Error(), err))
	}
	return result
}
