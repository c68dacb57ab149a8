// Package main provides the CLI entry point for the Oracle audit analyzer
// This tool provides five commands:
// 1. analyze - Aggregate and anomaly analysis of an audit log file
// 2. query - Read-only SQL over the parsed audit events
// 3. classify - Show the analysis category of a question
// 4. ask - Answer a question about an audit log with a local model
// 5. serve - Run the HTTP API
package main

import (
	"fmt"
	"os"

	"oracle-audit-analyzer/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
