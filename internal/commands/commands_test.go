package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"oracle-audit-analyzer/internal/config"
)

const testAuditLog = `2024-01-15 10:30:15,user1,HR_APP,SELECT,EMPLOYEES,HR,sqlplus.exe,WORKSTATION1,12345,ORCL
2024-01-15 10:31:02,user2,HR_APP,INSERT,EMPLOYEES,HR,SQL Developer,WORKSTATION2,12346,ORCL
2024-01-15 10:32:47 OS_USERNAME=user1,DBUSERNAME=HR_APP,ACTION_NAME=DELETE,OBJECT_NAME=EMPLOYEES,OBJECT_SCHEMA=HR,CLIENT_PROGRAM_NAME=sqlplus.exe,USERHOST=WORKSTATION1,SESSIONID=12347,INSTANCE=ORCL
this line is not an audit record`

// writeAuditFile writes content to a temporary audit file and returns its path
func writeAuditFile(t testing.TB, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create audit file: %v", err)
	}
	return path
}

// execute runs the root command with args and returns its output
func execute(t testing.TB, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	err := cmd.Execute()
	return buf.String(), err
}

// TestNewRootCommand tests that every subcommand is registered
func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "oracle-audit-analyzer" {
		t.Errorf("Expected command name 'oracle-audit-analyzer', got '%s'", cmd.Use)
	}

	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("Expected persistent flag 'config'")
	}

	for _, name := range []string{"analyze", "query", "classify", "ask", "serve"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("Subcommand '%s' not registered", name)
			continue
		}
		if sub.Short == "" || sub.Long == "" {
			t.Errorf("Subcommand '%s' is missing its description", name)
		}
	}
}

// TestCommandFlags tests the flags of each subcommand
func TestCommandFlags(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		flags []string
	}{
		{"analyze", NewAnalyzeCommand(), []string{"file", "json"}},
		{"query", NewQueryCommand(), []string{"file", "db", "sql"}},
		{"classify", NewClassifyCommand(), []string{"samples"}},
		{"ask", NewAskCommand(), []string{"file", "question", "json"}},
		{"serve", NewServeCommand(), []string{"addr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, flagName := range tt.flags {
				if tt.cmd.Flags().Lookup(flagName) == nil {
					t.Errorf("Expected flag '%s' not found", flagName)
				}
			}
		})
	}

	dbFlag := NewQueryCommand().Flags().Lookup("db")
	if dbFlag.DefValue != ":memory:" {
		t.Errorf("Expected default db value ':memory:', got '%s'", dbFlag.DefValue)
	}
}

// TestRequiredFlags tests that missing required flags are reported
func TestRequiredFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"analyze without file", []string{"analyze"}},
		{"query without file", []string{"query"}},
		{"ask without question", []string{"ask", "--file", "audit.log"}},
		{"ask without file", []string{"ask", "--question", "Qui ?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), "required flag") {
				t.Errorf("Expected required flag error, got '%v'", err)
			}
		})
	}
}

// TestInvalidConfigFile tests that a missing --config file is reported
func TestInvalidConfigFile(t *testing.T) {
	path := writeAuditFile(t, testAuditLog)

	_, err := execute(t, "", "analyze", "--file", path, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load configuration") {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

// TestClassifyCommand tests question classification output
func TestClassifyCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"classify", "Quels", "utilisateurs", "?"}, "user_analysis"},
		{[]string{"classify", "Combien de SELECT ?"}, "action_analysis"},
		{[]string{"classify", "Y a-t-il une anomalie ?"}, "security_analysis"},
		{[]string{"classify", "Quelle est la charge ?"}, "performance_analysis"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			out, err := execute(t, "", tt.args...)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, out)
			}
		})
	}
}

// TestClassifyCommandSamples tests the --samples listing
func TestClassifyCommandSamples(t *testing.T) {
	out, err := execute(t, "", "classify", "--samples")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 10 {
		t.Errorf("Expected 10 sample questions, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "user_analysis") {
		t.Errorf("Expected first sample to be a user question, got '%s'", lines[0])
	}

	if _, err := execute(t, "", "classify"); err == nil {
		t.Error("Expected error for classify without a question")
	}
	if _, err := execute(t, "", "classify", "--samples", "extra"); err == nil {
		t.Error("Expected error for --samples with a question")
	}
}

// TestAnalyzeCommand tests the text and JSON reports
func TestAnalyzeCommand(t *testing.T) {
	path := writeAuditFile(t, testAuditLog)

	out, err := execute(t, "", "analyze", "--file", path)
	if err != nil {
		t.Fatalf("Unexpected error: %v\nOutput: %s", err, out)
	}

	expected := []string{
		"Parsed 3 events (1 lines skipped)",
		"Summary: 3 events analyzed. Unique users: 2. Top actions: SELECT, INSERT, DELETE.",
		"Period: 2024-01-15 10:30:15 to 2024-01-15 10:32:47",
		"Top client programs:",
		"sqlplus.exe",
		"Suspicious activities:\n  none",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing '%s'\nOutput: %s", want, out)
		}
	}

	out, err = execute(t, "", "analyze", "--file", path, "--json")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, `"total_events": 3`) || !strings.Contains(out, `"suspicious_activities": []`) {
		t.Errorf("Unexpected JSON report: %s", out)
	}
}

// TestAnalyzeCommandThresholdsFromConfig tests that anomaly thresholds come from the config file
func TestAnalyzeCommandThresholdsFromConfig(t *testing.T) {
	path := writeAuditFile(t, testAuditLog)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("anomaly:\n  destructive_actions: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "analyze", "--file", path, "--config", cfgPath)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Destructive actions detected (1)") {
		t.Errorf("Expected destructive finding\nOutput: %s", out)
	}
}

// TestAnalyzeCommandFileValidation tests missing and empty files
func TestAnalyzeCommandFileValidation(t *testing.T) {
	_, err := execute(t, "", "analyze", "--file", filepath.Join(t.TempDir(), "nonexistent.log"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected missing file error, got %v", err)
	}

	out, err := execute(t, "", "analyze", "--file", writeAuditFile(t, "no audit lines here\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Summary: no events to analyze") {
		t.Errorf("Expected empty summary\nOutput: %s", out)
	}
}

// TestModelInfo tests the model description served by the API
func TestModelInfo(t *testing.T) {
	cfg := config.Default()

	info := modelInfo(cfg)
	if info.ModelName != cfg.Ollama.Model || info.EmbeddingModel != cfg.Ollama.EmbeddingModel {
		t.Errorf("Unexpected model info: %+v", info)
	}
	if info.VectorDB != "sqlite :memory:" {
		t.Errorf("Expected vector db 'sqlite :memory:', got '%s'", info.VectorDB)
	}

	cfg.Retrieval.Embedder = config.EmbedderHashing
	info = modelInfo(cfg)
	if info.Embedder != "hashing" || !strings.HasPrefix(info.EmbeddingModel, "feature hashing") {
		t.Errorf("Unexpected hashing model info: %+v", info)
	}
}
