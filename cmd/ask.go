package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/simonyos/whisper/internal/llm"
	"github.com/simonyos/whisper/internal/tui/components"
)

var errGenerationFailed = errors.New("generation failed")

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask a single question and print the reply",
	Long: `Ask a single question about a problem without opening the chat.
The exchange is stored in the problem's history like any chat message.

Examples:
  whisper ask -p two-sum.md "why does my loop time out?"
  whisper ask -p two-sum.md -c main.py -m groq_llama70b "give me a hint"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
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
		return a.selectErr
	}

	// Ctrl+C stops the request instead of killing the process mid-write
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go func() {
		<-ctx.Done()
		a.assistant.Stop()
	}()

	ex, err := a.assistant.Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case ex.Discarded:
		fmt.Fprintln(out, "Stopped.")
		return nil
	case ex.Err != nil:
		return fmt.Errorf("%w: %v", errGenerationFailed, ex.Err)
	}

	fmt.Fprintln(out, renderMessage(ex.Reply))
	if ex.PersistErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: reply not saved: %v\n", ex.PersistErr)
	}
	return nil
}

// renderMessage formats a chat message as terminal markdown
func renderMessage(msg llm.Message) string {
	content := msg.Text
	if msg.Output != nil {
		content = components.FormatOutput(*msg.Output)
	}
	rendered, err := glamour.Render(content, "dark")
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

func init() {
	addProblemFlags(askCmd)
	rootCmd.AddCommand(askCmd)
}
