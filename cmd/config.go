package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/simonyos/whisper/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage whisper configuration",
	Long: `Manage whisper configuration including API keys and defaults.
A running chat picks up changes as soon as the file is written.

Examples:
  whisper config                       # Show current config
  whisper config set openai <key>      # Set OpenAI API key
  whisper config set model gemini_1.5_pro
  whisper config delete groq           # Remove Groq API key`,
	Run: func(cmd *cobra.Command, args []string) {
		showConfig()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
  openai          - OpenAI API key
  gemini          - Gemini API key
  groq            - Groq API key
  github          - GitHub token for GitHub Models
  anthropic       - Anthropic API key
  model           - Default model id (see 'whisper models')
  history_dir     - Where conversations are stored
  timeout         - Generation timeout, e.g. 90s (default: 2m)
  history_window  - Prior messages sent with each prompt (default: 20)
  page_size       - Messages loaded per history page (default: 20)
  log_level       - debug, info, warn or error
  rules           - Extra instructions appended to the system prompt`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		if err := config.Set(key, value); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Set %s successfully.\n", key)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]

		val, err := config.Value(key)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if val == "" {
			fmt.Printf("%s is not set\n", key)
			return
		}
		fmt.Printf("%s: %s\n", key, val)
	},
}

var configDeleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"remove", "unset"},
	Short:   "Delete a configuration value",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]

		if err := config.Delete(key); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Deleted %s.\n", key)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.ConfigPath())
	},
}

func showConfig() {
	fmt.Printf("Configuration file: %s\n\n", config.ConfigPath())

	keys := config.ListKeys()
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		fmt.Printf("  %s: %s\n", k, keys[k])
	}
	fmt.Println("\nUse 'whisper config set <key> <value>' to configure.")
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configDeleteCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
