package cmd

import (
	"context"
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/simonyos/whisper/internal/config"
	"github.com/simonyos/whisper/internal/history"
	"github.com/simonyos/whisper/internal/llm"
)

var (
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored conversations",
	Long: `Inspect the conversations whisper keeps per problem.

Examples:
  whisper history list
  whisper history show leetcode-two-sum
  whisper history show leetcode-two-sum --limit 10 --offset 10
  whisper history delete leetcode-two-sum`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List problems with stored messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(config.Get(), false)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		ids, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored conversations.")
			return nil
		}

		table, err := historyTable(ctx, store, ids)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	},
}

// historyTable counts the stored messages of each problem
func historyTable(ctx context.Context, store history.Store, ids []string) (*uitable.Table, error) {
	table := uitable.New()
	table.AddRow("PROBLEM", "MESSAGES")
	for _, id := range ids {
		page, err := store.Fetch(ctx, id, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", id, err)
		}
		table.AddRow(id, page.TotalCount)
	}
	return table, nil
}

var historyShowCmd = &cobra.Command{
	Use:   "show <problem-id>",
	Short: "Print a problem's conversation, oldest first",
	Long: `Print a problem's conversation, oldest first.

--offset skips that many of the newest messages and --limit caps how many are
shown, the same way the chat loads one page at a time. Without --limit the
whole conversation is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		store, err := openStore(cfg, false)
		if err != nil {
			return err
		}

		messages, total, err := loadHistory(cmd.Context(), store, args[0], historyLimit, historyOffset, cfg.PageSize)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if total == 0 {
			fmt.Fprintf(out, "No messages for %s.\n", args[0])
			return nil
		}

		fmt.Fprintf(out, "%s: showing %d of %d messages\n\n", args[0], len(messages), total)
		for _, msg := range messages {
			fmt.Fprintf(out, "── %s ──\n%s\n\n", msg.Role, renderMessage(msg))
		}
		return nil
	},
}

// loadHistory returns messages oldest first plus the stored total
func loadHistory(ctx context.Context, store history.Store, problemID string, limit, offset, pageSize int) ([]llm.Message, int, error) {
	if limit > 0 || offset > 0 {
		page, err := store.Fetch(ctx, problemID, limit, offset)
		if err != nil {
			return nil, 0, err
		}
		return page.Chronological(), page.TotalCount, nil
	}

	messages, err := history.All(ctx, store, problemID, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return messages, len(messages), nil
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <problem-id>",
	Aliases: []string{"rm", "clear"},
	Short:   "Delete a problem's conversation",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(config.Get(), false)
		if err != nil {
			return err
		}
		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted history for %s.\n", args[0])
		return nil
	},
}

func init() {
	historyShowCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum messages to show (0 = all)")
	historyShowCmd.Flags().IntVar(&historyOffset, "offset", 0, "Skip this many of the newest messages")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
