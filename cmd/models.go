package cmd

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/simonyos/whisper/internal/config"
	"github.com/simonyos/whisper/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models whisper can use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), modelsTable(config.Get(), llm.DefaultRegistry().Models()))
		fmt.Fprintln(cmd.OutOrStdout(), "\nUse 'whisper config set model <id>' to change the default.")
	},
}

// modelsTable marks the configured model and whether its vendor has a key
func modelsTable(cfg *config.Config, models []llm.Model) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("", "ID", "NAME", "VENDOR", "KEY")
	for _, m := range models {
		current := ""
		if m.ID == cfg.Model {
			current = "*"
		}
		key := "missing"
		if cfg.APIKey(m.Vendor) != "" {
			key = "set"
		}
		table.AddRow(current, m.ID, m.Display, m.Vendor, key)
	}
	return table
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
