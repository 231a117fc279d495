package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/simonyos/whisper/internal/assistant"
	"github.com/simonyos/whisper/internal/config"
	"github.com/simonyos/whisper/internal/generation"
	"github.com/simonyos/whisper/internal/history"
	"github.com/simonyos/whisper/internal/llm"
	"github.com/simonyos/whisper/internal/logging"
	"github.com/simonyos/whisper/internal/problem"
	"github.com/simonyos/whisper/internal/prompts"
)

type appOptions struct {
	ProblemPath string
	CodePath    string
	Language    string
	Model       string
	NoHistory   bool
	LogConsole  bool
}

// app holds everything a problem-scoped command needs
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	logCloser   io.Closer
	registry    *llm.Registry
	coordinator *generation.Coordinator
	store       history.Store
	assistant   *assistant.Assistant

	// selectErr is why the initial model could not be bound, if it could not
	selectErr error
}

func newLogger(cfg *config.Config, console bool) (*zap.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     filepath.Join(config.ConfigDir(), "logs"),
		Console: console,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closer, nil
}

func openStore(cfg *config.Config, inMemory bool) (history.Store, error) {
	if inMemory {
		return history.NewMemoryStore(), nil
	}
	store, err := history.NewFileStore(cfg.HistoryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, closer, err := newLogger(cfg, opts.LogConsole)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg, opts.NoHistory)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: closer,
		registry:  llm.DefaultRegistry(),
		store:     store,
	}
	a.coordinator = generation.New(a.registry,
		generation.WithTimeout(cfg.TimeoutDuration()),
		generation.WithLogger(logger.Named("generation")),
	)

	source := &problem.FileSource{
		ProblemPath: opts.ProblemPath,
		CodePath:    opts.CodePath,
		Language:    opts.Language,
	}
	a.assistant = assistant.New(a.coordinator, store, source,
		assistant.WithHistoryWindow(cfg.HistoryWindow),
		assistant.WithLogger(logger.Named("assistant")),
		assistant.WithPromptBuilder(prompts.NewPromptBuilder().WithCustomRules(cfg.Rules)),
	)

	modelID := opts.Model
	if modelID == "" {
		modelID = cfg.Model
	}
	a.selectErr = a.coordinator.SelectModel(modelID, a.keyFor(modelID))

	logger.Info("whisper started",
		zap.String("problem_file", opts.ProblemPath),
		zap.String("model", modelID),
		zap.Bool("persistent_history", !opts.NoHistory),
	)
	return a, nil
}

// keyFor resolves a model's API key from the latest config
func (a *app) keyFor(modelID string) string {
	m, ok := a.registry.Model(modelID)
	if !ok {
		return ""
	}
	return config.Get().APIKey(m.Vendor)
}

func (a *app) Close() error {
	return a.logCloser.Close()
}
