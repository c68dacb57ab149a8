package database

import (
	"fmt"
	"path/filepath"
	"testing"

	"oracle-audit-analyzer/internal/models"
)

func testEvent(user, action, schema string) models.AuditEvent {
	return models.AuditEvent{
		Timestamp:     "2024-01-15 10:30:15",
		OSUsername:    user,
		DBUsername:    "HR_APP",
		ActionName:    action,
		ObjectName:    "EMPLOYEES",
		ObjectSchema:  schema,
		ClientProgram: "sqlplus.exe",
		UserHost:      "WORKSTATION1",
		SessionID:     "12345",
		Instance:      "ORCL",
		RawLine:       "raw",
	}
}

func openTestDB(t testing.TB) DB {
	t.Helper()
	db, err := Initialize(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db DB, where string) int64 {
	t.Helper()
	results, err := ExecuteQuery(db, "SELECT COUNT(*) AS count FROM audit_events "+where)
	if err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	count, ok := results[0]["count"].(int64)
	if !ok {
		t.Fatalf("count has unexpected type %T", results[0]["count"])
	}
	return count
}

// TestInitialize tests database initialization
func TestInitialize(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{
			name: "in-memory database",
			dsn:  ":memory:",
		},
		{
			name: "file database path",
			dsn:  filepath.Join(t.TempDir(), "test.db"),
		},
		{
			name:    "unreachable directory",
			dsn:     filepath.Join(t.TempDir(), "missing", "dir", "test.db"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Initialize(tt.dsn)

			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			defer db.Close()

			results, err := ExecuteQuery(db, "SELECT name FROM sqlite_master WHERE type='table' AND name='audit_events';")
			if err != nil {
				t.Errorf("Failed to query database: %v", err)
			}
			if len(results) != 1 {
				t.Error("Expected audit_events table to be created")
			}
		})
	}
}

// TestInsertRecords tests transactional insertion with and without embeddings
func TestInsertRecords(t *testing.T) {
	db := openTestDB(t)

	records := []Record{
		{DocID: "a/event_0", LogID: "a", Position: 0, Event: testEvent("u1", "SELECT", "HR"), Document: "d0", Embedding: []float64{1, 0}},
		{DocID: "a/event_1", LogID: "a", Position: 1, Event: testEvent("u2", "DELETE", "SYS"), Document: "d1"},
	}

	inserted, err := InsertRecords(db, records)
	if err != nil {
		t.Fatalf("InsertRecords() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("InsertRecords() inserted = %d, want 2", inserted)
	}
	if got := countRows(t, db, ""); got != 2 {
		t.Errorf("Expected 2 rows, got %d", got)
	}
	if got := countRows(t, db, "WHERE embedding IS NULL"); got != 1 {
		t.Errorf("Expected 1 row without embedding, got %d", got)
	}

	// Re-inserting the same doc ids replaces instead of duplicating
	if _, err := InsertRecords(db, records); err != nil {
		t.Fatalf("InsertRecords() second call error = %v", err)
	}
	if got := countRows(t, db, ""); got != 2 {
		t.Errorf("Expected 2 rows after replace, got %d", got)
	}

	for _, empty := range [][]Record{nil, {}} {
		inserted, err := InsertRecords(db, empty)
		if err != nil || inserted != 0 {
			t.Errorf("InsertRecords(empty) = %d, %v; want 0, nil", inserted, err)
		}
	}
}

// TestInsertRecordsRollback tests that a failing record leaves no partial batch
func TestInsertRecordsRollback(t *testing.T) {
	db := openTestDB(t)

	records := []Record{
		{DocID: "a/event_0", LogID: "a", Position: 0, Event: testEvent("u1", "SELECT", "HR"), Document: "d0"},
		{DocID: "a/event_1", LogID: "a", Position: -1, Event: testEvent("u1", "SELECT", "HR"), Document: "d1"},
	}

	if _, err := InsertRecords(db, records); err == nil {
		t.Fatal("InsertRecords() expected constraint error")
	}
	if got := countRows(t, db, ""); got != 0 {
		t.Errorf("Expected rollback to leave 0 rows, got %d", got)
	}
}

func TestInsertEvents(t *testing.T) {
	db := openTestDB(t)

	events := []models.AuditEvent{testEvent("u1", "SELECT", "HR"), testEvent("u2", "INSERT", "HR")}
	inserted, err := InsertEvents(db, "log_1", events)
	if err != nil {
		t.Fatalf("InsertEvents() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("InsertEvents() inserted = %d, want 2", inserted)
	}

	results, err := ExecuteQuery(db, "SELECT doc_id, document FROM audit_events ORDER BY position")
	if err != nil {
		t.Fatal(err)
	}
	if results[1]["doc_id"] != "log_1/event_1" {
		t.Errorf("doc_id = %v, want log_1/event_1", results[1]["doc_id"])
	}
	if results[0]["document"] != events[0].Document() {
		t.Errorf("document = %v, want %q", results[0]["document"], events[0].Document())
	}
}

// TestLoadEmbedded tests filtering by log and the embedding round trip
func TestLoadEmbedded(t *testing.T) {
	db := openTestDB(t)

	records := []Record{
		{DocID: "b/event_0", LogID: "b", Position: 0, Event: testEvent("u3", "UPDATE", "FIN"), Document: "db0", Embedding: []float64{0.5, 0.5}},
		{DocID: "a/event_1", LogID: "a", Position: 1, Event: testEvent("u2", "INSERT", "HR"), Document: "da1", Embedding: []float64{0, 1}},
		{DocID: "a/event_0", LogID: "a", Position: 0, Event: testEvent("u1", "SELECT", "HR"), Document: "da0", Embedding: []float64{1, 0}},
		{DocID: "a/event_2", LogID: "a", Position: 2, Event: testEvent("u1", "SELECT", "HR"), Document: "da2"},
	}
	if _, err := InsertRecords(db, records); err != nil {
		t.Fatal(err)
	}

	all, err := LoadEmbedded(db, "")
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("LoadEmbedded(\"\") returned %d records, want 3", len(all))
	}
	wantOrder := []string{"a/event_0", "a/event_1", "b/event_0"}
	for i, r := range all {
		if r.DocID != wantOrder[i] {
			t.Errorf("record %d = %s, want %s", i, r.DocID, wantOrder[i])
		}
	}
	if all[0].Event != records[2].Event {
		t.Errorf("event round trip = %+v, want %+v", all[0].Event, records[2].Event)
	}
	if len(all[2].Embedding) != 2 || all[2].Embedding[0] != 0.5 {
		t.Errorf("embedding round trip = %v", all[2].Embedding)
	}

	onlyB, err := LoadEmbedded(db, "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyB) != 1 || onlyB[0].LogID != "b" {
		t.Errorf("LoadEmbedded(\"b\") = %+v", onlyB)
	}

	none, err := LoadEmbedded(db, "unknown")
	if err != nil || len(none) != 0 {
		t.Errorf("LoadEmbedded(\"unknown\") = %v, %v", none, err)
	}
}

func TestDeleteLogAndDeleteAll(t *testing.T) {
	db := openTestDB(t)

	if _, err := InsertEvents(db, "a", []models.AuditEvent{testEvent("u1", "SELECT", "HR"), testEvent("u2", "SELECT", "HR")}); err != nil {
		t.Fatal(err)
	}
	if _, err := InsertEvents(db, "b", []models.AuditEvent{testEvent("u3", "SELECT", "HR")}); err != nil {
		t.Fatal(err)
	}

	removed, err := DeleteLog(db, "a")
	if err != nil {
		t.Fatalf("DeleteLog() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteLog() removed = %d, want 2", removed)
	}
	if got := countRows(t, db, ""); got != 1 {
		t.Errorf("Expected 1 row left, got %d", got)
	}

	if err := DeleteAll(db); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if got := countRows(t, db, ""); got != 0 {
		t.Errorf("Expected 0 rows, got %d", got)
	}
}

// TestExecuteQueryWithColumns tests that the select-list order is kept
func TestExecuteQueryWithColumns(t *testing.T) {
	db := openTestDB(t)
	if _, err := InsertEvents(db, "log", []models.AuditEvent{testEvent("u1", "SELECT", "HR")}); err != nil {
		t.Fatal(err)
	}

	result, err := ExecuteQueryWithColumns(db, "SELECT os_username, action_name, position FROM audit_events")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"os_username", "action_name", "position"}
	if len(result.Columns) != len(want) {
		t.Fatalf("Columns = %v, want %v", result.Columns, want)
	}
	for i := range want {
		if result.Columns[i] != want[i] {
			t.Errorf("Columns[%d] = %q, want %q", i, result.Columns[i], want[i])
		}
	}
	if len(result.Rows) != 1 || result.Rows[0]["action_name"] != "SELECT" {
		t.Errorf("Rows = %v", result.Rows)
	}
}

// TestExecuteQuery tests SQL query execution
func TestExecuteQuery(t *testing.T) {
	db := openTestDB(t)

	events := []models.AuditEvent{
		testEvent("u1", "SELECT", "HR"),
		testEvent("u1", "DELETE", "HR"),
		testEvent("u2", "SELECT", "SYS"),
	}
	if _, err := InsertEvents(db, "log", events); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		query    string
		wantRows int
		wantErr  bool
	}{
		{
			name:     "count by user",
			query:    "SELECT os_username, COUNT(*) AS n FROM audit_events GROUP BY os_username",
			wantRows: 2,
		},
		{
			name:     "filter on action literal",
			query:    "SELECT * FROM audit_events WHERE action_name = 'DELETE'",
			wantRows: 1,
		},
		{
			name:     "no matches",
			query:    "SELECT * FROM audit_events WHERE object_schema = 'FIN'",
			wantRows: 0,
		},
		{
			name:    "invalid SQL",
			query:   "SELECT FROM WHERE",
			wantErr: true,
		},
		{
			name:    "unknown table",
			query:   "SELECT * FROM logs",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := ExecuteQuery(db, tt.query)

			if (err != nil) != tt.wantErr {
				t.Errorf("ExecuteQuery() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(results) != tt.wantRows {
				t.Errorf("ExecuteQuery() returned %d rows, want %d", len(results), tt.wantRows)
			}
		})
	}
}

// TestCreateTables tests table schema creation
func TestCreateTables(t *testing.T) {
	db := openTestDB(t)

	results, err := ExecuteQuery(db, "PRAGMA table_info(audit_events)")
	if err != nil {
		t.Fatalf("Failed to get table info: %v", err)
	}

	columns := make(map[string]bool)
	for _, row := range results {
		columns[row["name"].(string)] = true
	}
	for key := range testEvent("u", "a", "s").Metadata() {
		if !columns[key] {
			t.Errorf("Expected column %s not found", key)
		}
	}
	for _, col := range []string{"doc_id", "log_id", "position", "raw_line", "document", "embedding"} {
		if !columns[col] {
			t.Errorf("Expected column %s not found", col)
		}
	}

	results, err = ExecuteQuery(db, "PRAGMA index_list(audit_events)")
	if err != nil {
		t.Fatalf("Failed to get index list: %v", err)
	}
	if len(results) < 5 {
		t.Errorf("Expected at least 5 indexes, got %d", len(results))
	}
}

// BenchmarkInsertEvents benchmarks batch insertion of events
func BenchmarkInsertEvents(b *testing.B) {
	db := openTestDB(b)

	events := make([]models.AuditEvent, 1000)
	for i := range events {
		events[i] = testEvent(fmt.Sprintf("user%d", i%10), "SELECT", "HR")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := InsertEvents(db, fmt.Sprintf("log_%d", i), events); err != nil {
			b.Fatal(err)
		}
	}
}

// ExampleInitialize demonstrates opening the in-memory event store
func ExampleInitialize() {
	db, err := Initialize(":memory:")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer db.Close()

	inserted, _ := InsertEvents(db, "log_1", []models.AuditEvent{testEvent("user1", "SELECT", "HR")})
	fmt.Printf("Inserted %d events\n", inserted)
	// Output:
	// Inserted 1 events
}
