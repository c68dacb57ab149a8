package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"oracle-audit-analyzer/internal/config"
)

// NewAskCommand creates the 'ask' subcommand for answering one question about a file
// Usage: oracle-audit-analyzer ask --file audit.log --question "Qui a supprimé des lignes ?"
func NewAskCommand() *cobra.Command {
	var auditFile string
	var question string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask a question about an Oracle audit log file",
		Long: `Ingest an Oracle audit log file, index its events for semantic search and answer
a natural-language question about them with a local Ollama model.

The events most related to the question are retrieved and passed to the model as
context. The question category (see 'classify') selects the prompt.

Ollama must be running unless retrieval.embedder is 'hashing', in which case only
text generation needs it. Model names and the Ollama URL come from the
configuration file or AUDIT_OLLAMA__* environment variables.

Example:
  oracle-audit-analyzer ask --file audit.log --question "Quels utilisateurs sont les plus actifs ?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runAskCommand(cmd, cfg, auditFile, question, asJSON)
		},
	}

	cmd.Flags().StringVarP(&auditFile, "file", "f", "", config.AuditFileDescription)
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to ask about the audit log (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("question")

	return cmd
}

// runAskCommand ingests the file and answers the question against it
func runAskCommand(cmd *cobra.Command, cfg *config.Config, auditFile, question string, asJSON bool) error {
	content, err := os.ReadFile(auditFile)
	if err != nil {
		return fmt.Errorf("failed to read audit file: %w", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ingested, result, err := app.Service.AskWithLog(cmd.Context(), question, filepath.Base(auditFile), string(content))
	if err != nil {
		return fmt.Errorf("failed to ingest audit file: %w", err)
	}

	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Log %s: %d events (%d lines skipped)\n", ingested.LogID, ingested.EventCount, ingested.SkippedLines)
		if !ingested.Indexed {
			fmt.Fprintln(out, "Warning: events could not be indexed for semantic search")
		}
		fmt.Fprintf(out, "Category: %s\n", result.Category)
		fmt.Fprintf(out, "Confidence: %.2f\n", result.Confidence)
		fmt.Fprintf(out, "Sources: %d events\n\n", len(result.Sources))
		fmt.Fprintln(out, result.Answer)
	}

	if result.Failed() {
		return fmt.Errorf("question could not be answered: %s", result.Error)
	}
	return nil
}
