package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleLog = `2024-01-15 10:30:15,user1,HR_APP,SELECT,EMPLOYEES,HR,sqlplus.exe,WORKSTATION1,12345,ORCL
2024-01-15 10:31:02,user2,HR_APP,INSERT,EMPLOYEES,HR,SQL Developer,WORKSTATION2,12346,ORCL
2024-01-15 10:32:47,user3,FIN_APP,UPDATE,ACCOUNTS,FIN,JDBC Thin Client,APPSERVER1,12347,ORCL`

// TestParse tests event extraction from audit log content
func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantEvents  int
		wantLines   int
		wantSkipped int
	}{
		{
			name:       "simple positional lines",
			content:    sampleLog,
			wantEvents: 3,
			wantLines:  3,
		},
		{
			name: "standard labeled line",
			content: "2024-01-15 10:30:15 AUDIT OS_USERNAME=oracle,DBUSERNAME=SYS,ACTION_NAME=LOGON," +
				"OBJECT_NAME=DUAL,OBJECT_SCHEMA=SYS,CLIENT_PROGRAM_NAME=sqlplus,USERHOST=db01,SESSIONID=9,INSTANCE=ORCL1",
			wantEvents: 1,
			wantLines:  1,
		},
		{
			name:       "empty content",
			content:    "",
			wantEvents: 0,
		},
		{
			name:       "blank lines only",
			content:    "\n   \n\t\n",
			wantEvents: 0,
		},
		{
			name:        "no matching lines",
			content:     "header line\nanother unrelated line\n2024-01-15 10:30:15 too,few,fields",
			wantEvents:  0,
			wantLines:   3,
			wantSkipped: 3,
		},
		{
			name:        "mixed valid and invalid lines",
			content:     "garbage\n" + sampleLog + "\n\nmore garbage\n",
			wantEvents:  3,
			wantLines:   5,
			wantSkipped: 2,
		},
		{
			name:       "windows line endings",
			content:    strings.ReplaceAll(sampleLog, "\n", "\r\n"),
			wantEvents: 3,
			wantLines:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse(tt.content)

			if len(result.Events) != tt.wantEvents {
				t.Errorf("Parse() returned %d events, want %d", len(result.Events), tt.wantEvents)
			}
			if result.Lines != tt.wantLines {
				t.Errorf("Parse() examined %d lines, want %d", result.Lines, tt.wantLines)
			}
			if result.Skipped != tt.wantSkipped {
				t.Errorf("Parse() skipped %d lines, want %d", result.Skipped, tt.wantSkipped)
			}
		})
	}
}

// TestParseSimpleFieldOrder tests that positional fields map onto events in source order
func TestParseSimpleFieldOrder(t *testing.T) {
	result := Parse(sampleLog)
	if len(result.Events) != 3 {
		t.Fatalf("Parse() returned %d events, want 3", len(result.Events))
	}

	lines := strings.Split(sampleLog, "\n")
	for i, event := range result.Events {
		fields := strings.Split(lines[i], ",")
		got := []string{
			event.Timestamp, event.OSUsername, event.DBUsername, event.ActionName, event.ObjectName,
			event.ObjectSchema, event.ClientProgram, event.UserHost, event.SessionID, event.Instance,
		}
		for j := range fields {
			if got[j] != fields[j] {
				t.Errorf("event %d field %d = %q, want %q", i, j, got[j], fields[j])
			}
		}
		if event.RawLine != lines[i] {
			t.Errorf("event %d raw line = %q, want %q", i, event.RawLine, lines[i])
		}
	}
}

// TestParseStandardOrderIndependent tests that labeled fields may appear in any order
func TestParseStandardOrderIndependent(t *testing.T) {
	line := "2024-02-01 08:00:00 INSTANCE=ORCL2, SESSIONID=77, USERHOST=web01, CLIENT_PROGRAM_NAME=java, " +
		"OBJECT_SCHEMA=APP, OBJECT_NAME=ORDERS, ACTION_NAME=DELETE, DBUSERNAME=APP_USER, OS_USERNAME=svc_app"

	result := Parse(line)
	if len(result.Events) != 1 {
		t.Fatalf("Parse() returned %d events, want 1", len(result.Events))
	}

	event := result.Events[0]
	expected := map[string]string{
		"Timestamp":     "2024-02-01 08:00:00",
		"OSUsername":    "svc_app",
		"DBUsername":    "APP_USER",
		"ActionName":    "DELETE",
		"ObjectName":    "ORDERS",
		"ObjectSchema":  "APP",
		"ClientProgram": "java",
		"UserHost":      "web01",
		"SessionID":     "77",
		"Instance":      "ORCL2",
	}
	actual := map[string]string{
		"Timestamp":     event.Timestamp,
		"OSUsername":    event.OSUsername,
		"DBUsername":    event.DBUsername,
		"ActionName":    event.ActionName,
		"ObjectName":    event.ObjectName,
		"ObjectSchema":  event.ObjectSchema,
		"ClientProgram": event.ClientProgram,
		"UserHost":      event.UserHost,
		"SessionID":     event.SessionID,
		"Instance":      event.Instance,
	}
	for field, want := range expected {
		if actual[field] != want {
			t.Errorf("%s = %q, want %q", field, actual[field], want)
		}
	}
}

// TestParseStandardPrecedence tests that the labeled pattern wins over the positional one
func TestParseStandardPrecedence(t *testing.T) {
	line := "2024-02-01 08:00:00,OS_USERNAME=alice,DBUSERNAME=SCOTT,ACTION_NAME=SELECT,OBJECT_NAME=EMP," +
		"OBJECT_SCHEMA=SCOTT,CLIENT_PROGRAM_NAME=toad,USERHOST=pc1,SESSIONID=5,INSTANCE=ORCL"

	result := Parse(line)
	if len(result.Events) != 1 {
		t.Fatalf("Parse() returned %d events, want 1", len(result.Events))
	}
	if got := result.Events[0].OSUsername; got != "alice" {
		t.Errorf("OSUsername = %q, want %q (labeled value, not positional)", got, "alice")
	}
}

// TestParseStandardMissingLabelFallsBack tests that an incomplete labeled line is not a standard match
func TestParseStandardMissingLabelFallsBack(t *testing.T) {
	line := "2024-02-01 08:00:00 OS_USERNAME=alice,DBUSERNAME=SCOTT,ACTION_NAME=SELECT"

	result := Parse(line)
	if len(result.Events) != 0 || result.Skipped != 1 {
		t.Errorf("Parse() = %d events, %d skipped; want 0 events, 1 skipped", len(result.Events), result.Skipped)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.txt")
	if err := os.WriteFile(path, []byte(sampleLog), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(result.Events) != 3 {
		t.Errorf("ParseFile() returned %d events, want 3", len(result.Events))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("ParseFile() expected error for missing file")
	}
}

// BenchmarkParse benchmarks parsing a thousand positional lines
func BenchmarkParse(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "2024-01-15 10:30:15,user%d,HR_APP,SELECT,EMPLOYEES,HR,sqlplus.exe,WS%d,%d,ORCL\n", i%7, i%3, i)
	}
	content := sb.String()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Parse(content)
	}
}

// ExampleParse demonstrates parsing positional audit lines
func ExampleParse() {
	result := Parse(sampleLog + "\nnot an audit line")

	fmt.Printf("Parsed %d events, skipped %d\n", len(result.Events), result.Skipped)
	fmt.Printf("First action: %s by %s\n", result.Events[0].ActionName, result.Events[0].OSUsername)

	// Output:
	// Parsed 3 events, skipped 1
	// First action: SELECT by user1
}
