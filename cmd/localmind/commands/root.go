// Package commands implements the localmind CLI.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/localmind/localmind/internal/audit"
	"github.com/localmind/localmind/internal/config"
	"github.com/localmind/localmind/internal/logging"
)

var (
	// configFlag is the --config persistent flag value.
	configFlag string

	// rootLog is the process logger, built once in the persistent pre-run.
	rootLog *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "localmind",
	Short: "Retrieval-augmented answering over a local knowledge base and live web search",
	Long: `localmind answers questions by routing each query to the local vector
knowledge base, live web search, or both, then generates a grounded answer
with a configurable LLM backend (Ollama, OpenAI, Azure OpenAI, or Gemini).`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		rootLog = logging.New()
		slog.SetDefault(rootLog)

		path, err := config.Load(configFlag, rootLog)
		if err != nil {
			return err
		}
		audit.LogCommandStart(rootLog, cmd.Name(), path)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
