package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"oracle-audit-analyzer/internal/config"
	"oracle-audit-analyzer/internal/database"
	"oracle-audit-analyzer/internal/parser"
)

var (
	singleLineCommentRegex = regexp.MustCompile(`--.*`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// SQL string literals, with '' as the escaped quote
	stringLiteralRegex = regexp.MustCompile(`'(?:[^']|'')*'`)

	// Keywords that indicate write operations
	forbiddenKeywords = []string{
		"insert", "update", "delete", "drop", "create", "alter",
		"truncate", "replace", "merge", "upsert",
		"attach", "detach", "vacuum", "reindex",
		"begin", "commit", "rollback", "savepoint",
	}
	forbiddenKeywordRegexes = compileKeywordRegexes(forbiddenKeywords)

	allowedPrefixes = []string{
		"select",  // SELECT queries
		"with",    // Common Table Expressions (CTEs)
		"explain", // Query execution plans
	}

	allowedPragmas = []string{
		"pragma table_info(",
		"pragma index_list(",
		"pragma index_info(",
		"pragma foreign_key_list(",
		"pragma schema_version",
		"pragma user_version",
		"pragma database_list",
		"pragma compile_options",
	}
)

func compileKeywordRegexes(keywords []string) []*regexp.Regexp {
	regexes := make([]*regexp.Regexp, len(keywords))
	for i, keyword := range keywords {
		regexes[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	}
	return regexes
}

// NewQueryCommand creates the 'query' subcommand for SQL over parsed audit events
// Usage: oracle-audit-analyzer query --file audit.log [--db :memory:] [--sql "SELECT ..."]
func NewQueryCommand() *cobra.Command {
	var auditFile string
	var dsn string
	var sqlQuery string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Execute SQL queries against parsed audit events",
		Long: `Parse an Oracle audit log file into the audit_events SQLite table and execute
SQL queries against it.

You can either provide a query directly via the --sql flag or enter interactive mode
to execute multiple queries. The table lives in memory unless --db names a file.

SECURITY: Only read-only queries are allowed. Write operations (INSERT, UPDATE, DELETE,
CREATE, DROP, etc.) are blocked for data protection. Keywords inside string literals,
as in WHERE action_name = 'DELETE', are not treated as operations.

Columns: log_id, position, timestamp, os_username, db_username, action_name,
object_name, object_schema, client_program, userhost, session_id, instance, raw_line.

Common example queries:
  # Events per user
  SELECT os_username, COUNT(*) AS events FROM audit_events GROUP BY os_username;

  # Destructive actions
  SELECT timestamp, os_username, object_name FROM audit_events
  WHERE action_name IN ('DELETE', 'TRUNCATE', 'DROP');

  # Sessions per user
  SELECT os_username, COUNT(DISTINCT session_id) AS sessions FROM audit_events
  GROUP BY os_username ORDER BY sessions DESC;

Interactive mode:
  oracle-audit-analyzer query --file audit.log

Direct query:
  oracle-audit-analyzer query --file audit.log --sql "SELECT COUNT(*) FROM audit_events"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("db") {
				dsn = cfg.Database.DSN
			}
			return runQueryCommand(cmd.InOrStdin(), cmd.OutOrStdout(), auditFile, dsn, sqlQuery)
		},
	}

	cmd.Flags().StringVarP(&auditFile, "file", "f", "", config.AuditFileDescription)
	cmd.Flags().StringVarP(&dsn, "db", "d", config.DefaultDSN, config.DatabaseDSNDescription)
	cmd.Flags().StringVarP(&sqlQuery, "sql", "s", "", "SQL query to execute (if not provided, enters interactive mode)")
	cmd.MarkFlagRequired("file")

	return cmd
}

// runQueryCommand loads the audit file and executes the query logic
func runQueryCommand(in io.Reader, out io.Writer, auditFile, dsn, sqlQuery string) error {
	if _, err := os.Stat(auditFile); os.IsNotExist(err) {
		return fmt.Errorf("audit file does not exist: %s", auditFile)
	}

	parsed, err := parser.ParseFile(auditFile)
	if err != nil {
		return fmt.Errorf("failed to parse audit file: %w", err)
	}

	db, err := database.Initialize(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logID := filepath.Base(auditFile)
	if _, err := database.DeleteLog(db, logID); err != nil {
		return fmt.Errorf("failed to clear previous events: %w", err)
	}
	count, err := database.InsertEvents(db, logID, parsed.Events)
	if err != nil {
		return fmt.Errorf("failed to load audit events: %w", err)
	}
	fmt.Fprintf(out, "Loaded %d events from %s (%d lines skipped)\n", count, auditFile, parsed.Skipped)

	if sqlQuery != "" {
		return executeSingleQuery(out, db, sqlQuery)
	}

	return enterInteractiveMode(in, out, db)
}

// executeSingleQuery runs a single SQL query and displays results
func executeSingleQuery(out io.Writer, db database.DB, query string) error {
	fmt.Fprintf(out, "Executing query: %s\n\n", query)

	if err := ValidateReadOnlyQuery(query); err != nil {
		return fmt.Errorf("query validation failed: %w", err)
	}

	result, err := database.ExecuteQueryWithColumns(db, query)
	if err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}

	displayResults(out, result)
	return nil
}

// enterInteractiveMode provides an interactive SQL query interface
func enterInteractiveMode(in io.Reader, out io.Writer, db database.DB) error {
	fmt.Fprintln(out, "Interactive SQL query mode. Type 'exit' or 'quit' to exit.")
	fmt.Fprintln(out, "SECURITY: Only read-only queries (SELECT, WITH, EXPLAIN) are allowed.")
	fmt.Fprintln(out, "Example queries:")
	fmt.Fprintln(out, "  SELECT COUNT(DISTINCT os_username) AS unique_users FROM audit_events;")
	fmt.Fprintln(out, "  SELECT action_name, COUNT(*) FROM audit_events GROUP BY action_name;")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "sql> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())

		if input == "exit" || input == "quit" {
			fmt.Fprintln(out, "Goodbye!")
			break
		}

		if input == "" {
			continue
		}

		if err := ValidateReadOnlyQuery(input); err != nil {
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}

		result, err := database.ExecuteQueryWithColumns(db, input)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}

		displayResults(out, result)
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return nil
}

// displayResults formats and prints query results in select-list order
func displayResults(out io.Writer, result *database.QueryResult) {
	if len(result.Rows) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}

	for i, column := range result.Columns {
		if i > 0 {
			fmt.Fprint(out, " | ")
		}
		fmt.Fprintf(out, "%-15s", column)
	}
	fmt.Fprintln(out)

	for i := range result.Columns {
		if i > 0 {
			fmt.Fprint(out, " | ")
		}
		fmt.Fprint(out, strings.Repeat("-", 15))
	}
	fmt.Fprintln(out)

	for _, row := range result.Rows {
		for i, column := range result.Columns {
			if i > 0 {
				fmt.Fprint(out, " | ")
			}
			fmt.Fprintf(out, "%-15v", row[column])
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "\n(%d rows)\n", len(result.Rows))
}

// ValidateReadOnlyQuery ensures the SQL query is read-only and safe to execute
// Prevents data modification, schema changes, and other potentially harmful operations
func ValidateReadOnlyQuery(query string) error {
	normalizedQuery := strings.ToLower(query)

	// Literals go first so that '--' or a keyword inside a string is inert
	normalizedQuery = stringLiteralRegex.ReplaceAllString(normalizedQuery, "''")
	normalizedQuery = singleLineCommentRegex.ReplaceAllString(normalizedQuery, "")
	normalizedQuery = multiLineCommentRegex.ReplaceAllString(normalizedQuery, "")
	normalizedQuery = strings.TrimSpace(normalizedQuery)

	if normalizedQuery == "" {
		return fmt.Errorf("empty query")
	}

	queryStartsWithAllowed := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(normalizedQuery, prefix) {
			queryStartsWithAllowed = true
			break
		}
	}

	if strings.HasPrefix(normalizedQuery, "pragma") {
		pragmaAllowed := false
		for _, allowedPragma := range allowedPragmas {
			if strings.HasPrefix(normalizedQuery, allowedPragma) {
				pragmaAllowed = true
				break
			}
		}

		if !pragmaAllowed {
			return fmt.Errorf("PRAGMA statement not allowed. Only read-only PRAGMA statements are permitted")
		}
		queryStartsWithAllowed = true
	}

	if !queryStartsWithAllowed {
		return fmt.Errorf("only read-only queries are allowed (SELECT, WITH, EXPLAIN, and read-only PRAGMA)")
	}

	// Check for forbidden keywords anywhere in the query, subqueries included
	for i, keywordRegex := range forbiddenKeywordRegexes {
		if keywordRegex.MatchString(normalizedQuery) {
			return fmt.Errorf("forbidden keyword '%s' detected. Only read-only operations are allowed",
				strings.ToUpper(forbiddenKeywords[i]))
		}
	}

	statements := strings.Split(normalizedQuery, ";")
	if len(statements) > 2 || (len(statements) == 2 && strings.TrimSpace(statements[1]) != "") {
		return fmt.Errorf("multiple statements not allowed. Please execute one query at a time")
	}

	return nil
}
