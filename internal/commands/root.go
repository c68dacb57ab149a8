package commands

import (
	"github.com/spf13/cobra"

	"oracle-audit-analyzer/internal/config"
)

// NewRootCommand creates the root command with every subcommand attached
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oracle-audit-analyzer",
		Short: "Analyze Oracle audit logs and ask questions about them",
		Long: `Oracle Audit Analyzer parses Oracle audit trail exports, computes aggregate and
anomaly reports, and answers natural-language questions about the events with a
local Ollama model.

Offline commands:
  analyze   aggregate analysis and suspicious activity findings
  query     read-only SQL over the parsed events
  classify  show how a question is routed

Model-backed commands:
  ask       answer one question about a file
  serve     run the HTTP API

Configuration is read from built-in defaults, then the --config YAML file, then
AUDIT_* environment variables (nested keys joined by a double underscore, e.g.
AUDIT_OLLAMA__BASE_URL).`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(configFlag, "", config.ConfigFileDescription)

	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewQueryCommand())
	rootCmd.AddCommand(NewClassifyCommand())
	rootCmd.AddCommand(NewAskCommand())
	rootCmd.AddCommand(NewServeCommand())

	return rootCmd
}
