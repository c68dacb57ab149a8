package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"oracle-audit-analyzer/internal/analytics"
	"oracle-audit-analyzer/internal/config"
	"oracle-audit-analyzer/internal/models"
	"oracle-audit-analyzer/internal/parser"
)

// NewAnalyzeCommand creates the 'analyze' subcommand for offline pattern analysis
// Usage: oracle-audit-analyzer analyze --file audit.log [--json]
func NewAnalyzeCommand() *cobra.Command {
	var auditFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an Oracle audit log file",
		Long: `Parse an Oracle audit log file and print its aggregate analysis: event and
user counts, action frequencies, top client programs and objects, the covered
period and suspicious activity findings.

Two line formats are recognized:
  - labeled:  2024-01-15 10:30:15 OS_USERNAME=alice,DBUSERNAME=HR_APP,ACTION_NAME=SELECT,...
  - simple:   2024-01-15 10:30:15,alice,HR_APP,SELECT,EMPLOYEES,HR,sqlplus,WS1,12345,ORCL

Lines matching neither format are skipped and counted.

Anomaly thresholds come from the configuration file (anomaly section).

Example:
  oracle-audit-analyzer analyze --file audit.log
  oracle-audit-analyzer analyze --file audit.log --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runAnalyzeCommand(cmd.OutOrStdout(), auditFile, cfg.Anomaly.Thresholds(), asJSON)
		},
	}

	cmd.Flags().StringVarP(&auditFile, "file", "f", "", config.AuditFileDescription)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis report as JSON")
	cmd.MarkFlagRequired("file")

	return cmd
}

// runAnalyzeCommand parses the file and prints its analysis
func runAnalyzeCommand(out io.Writer, auditFile string, th analytics.Thresholds, asJSON bool) error {
	if _, err := os.Stat(auditFile); os.IsNotExist(err) {
		return fmt.Errorf("audit file does not exist: %s", auditFile)
	}

	parsed, err := parser.ParseFile(auditFile)
	if err != nil {
		return fmt.Errorf("failed to parse audit file: %w", err)
	}

	report := analytics.Analyze(parsed.Events, th)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Audit file: %s\n", auditFile)
	fmt.Fprintf(out, "Parsed %d events (%d lines skipped)\n\n", len(parsed.Events), parsed.Skipped)
	fmt.Fprintln(out, analytics.Summary(report))

	if report.Empty {
		return nil
	}

	printFrequencies(out, "Actions", report.Actions)
	printFrequencies(out, "Top client programs", report.TopPrograms)
	printFrequencies(out, "Top objects", report.TopObjects)

	fmt.Fprintln(out, "\nSuspicious activities:")
	if len(report.SuspiciousActivities) == 0 {
		fmt.Fprintln(out, "  none")
	}
	for _, finding := range report.SuspiciousActivities {
		fmt.Fprintf(out, "  - %s\n", finding)
	}

	return nil
}

func printFrequencies(out io.Writer, title string, freqs models.Frequencies) {
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, f := range freqs {
		fmt.Fprintf(out, "  %-25s %d\n", f.Value, f.Count)
	}
}
