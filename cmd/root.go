package cmd

import (
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonyos/whisper/internal/config"
	"github.com/simonyos/whisper/internal/tui"
)

var (
	problemFlag    string
	codeFlag       string
	languageFlag   string
	modelFlag      string
	noHistoryFlag  bool
	logConsoleFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "whisper",
	Short: "A coding-problem tutor in your terminal",
	Long: `Whisper is a tutor for coding problems. It reads the problem statement and
your current code, and answers with feedback and hints rather than a full
solution. Conversations are kept per problem.

The problem file is markdown with optional frontmatter:

  ---
  url: https://leetcode.com/problems/two-sum/
  language: golang
  code_file: solution.go
  ---
  Given an array of integers nums and an integer target...

Supported models (see 'whisper models'):
  openai_4o, openai_3.5_turbo   - OpenAI (OPENAI_API_KEY)
  gemini_1.5_pro                - Gemini (GEMINI_API_KEY)
  groq_llama70b, groq_llama90b  - Groq (GROQ_API_KEY)
  github_gpt4o                  - GitHub Models (GITHUB_TOKEN)
  claude_sonnet                 - Anthropic (ANTHROPIC_API_KEY)`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat for a problem",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{
		ProblemPath: problemFlag,
		CodePath:    codeFlag,
		Language:    languageFlag,
		Model:       modelFlag,
		NoHistory:   noHistoryFlag,
		LogConsole:  logConsoleFlag,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.selectErr != nil {
		// The chat still opens; /model or a config change can fix the binding
		fmt.Fprintf(os.Stderr, "Warning: %v\n", a.selectErr)
	}

	cfg := a.cfg
	model := tui.New(a.assistant, tui.Options{
		Models:   a.registry.Models(),
		PageSize: cfg.PageSize,
		KeyFor:   a.keyFor,
		OnModelChange: func(modelID string) error {
			return config.Set("model", modelID)
		},
		Logger: a.logger.Named("tui"),
	})

	// Start TUI with options to prevent terminal query responses from appearing
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithoutBracketedPaste(), // Disable bracketed paste to avoid escape sequence issues
	)

	// A key or model change written by 'whisper config set' in another
	// terminal rebinds the running chat. Only a changed model id moves the
	// binding; other edits re-apply the current model with fresh keys.
	var (
		watchMu   sync.Mutex
		lastModel = cfg.Model
	)
	err = config.Watch(func(updated *config.Config) {
		watchMu.Lock()
		defer watchMu.Unlock()
		target := a.assistant.ModelID()
		if updated.Model != lastModel {
			target = updated.Model
			lastModel = updated.Model
		}
		p.Send(tui.ConfigChangedMsg{Model: target})
	})
	if err != nil {
		a.logger.Warn("config watch disabled", zap.Error(err))
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addProblemFlags registers the flags every problem-scoped command shares
func addProblemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&problemFlag, "problem", "p", "", "Problem markdown file")
	cmd.Flags().StringVarP(&codeFlag, "code", "c", "", "Code file (overrides the problem's code_file)")
	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language code, e.g. python3 (default: from the code file)")
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model id (default: config 'model')")
	cmd.Flags().BoolVar(&noHistoryFlag, "no-history", false, "Keep the conversation in memory only")
	_ = cmd.MarkFlagRequired("problem")
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().BoolVar(&logConsoleFlag, "log-console", false, "Also write logs to stderr")

	addProblemFlags(rootCmd)
	addProblemFlags(chatCmd)
	rootCmd.AddCommand(chatCmd)
}
