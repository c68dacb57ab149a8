package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"oracle-audit-analyzer/internal/classifier"
)

// NewClassifyCommand creates the 'classify' subcommand
// Usage: oracle-audit-analyzer classify "Quels utilisateurs ont fait des DELETE ?"
func NewClassifyCommand() *cobra.Command {
	var listSamples bool

	cmd := &cobra.Command{
		Use:   "classify [question]",
		Short: "Show the analysis category of a question",
		Long: `Print the analysis category a question is routed to. The category selects
the prompt sent to the language model.

Categories, checked in this order:
  user_analysis         user, utilisateur, qui
  action_analysis       action, select, insert, update, delete, requête
  security_analysis     sécurité, sécurisé, suspect, anomalie
  performance_analysis  anything else

Example:
  oracle-audit-analyzer classify "Y a-t-il des activités suspectes ?"
  oracle-audit-analyzer classify --samples`,
		Args: func(cmd *cobra.Command, args []string) error {
			if listSamples {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if listSamples {
				for _, q := range classifier.SampleQuestions() {
					fmt.Fprintf(out, "%-22s %s\n", classifier.Classify(q), q)
				}
				return nil
			}

			fmt.Fprintln(out, classifier.Classify(strings.Join(args, " ")))
			return nil
		},
	}

	cmd.Flags().BoolVar(&listSamples, "samples", false, "Classify the built-in sample questions")

	return cmd
}
