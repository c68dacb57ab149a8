// Package database provides SQLite storage for parsed audit events and their
// embeddings. It backs both the semantic retrieval store and the ad-hoc SQL
// query command.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"oracle-audit-analyzer/internal/models"
)

// TableName is the table holding one row per indexed audit event
const TableName = "audit_events"

// DB interface defines database operations for easier testing and extensibility
type DB interface {
	Close() error
	Query(query string, args ...interface{}) (*sql.Rows, error)
	Exec(query string, args ...interface{}) (sql.Result, error)
	Begin() (*sql.Tx, error)
}

// sqliteDB implements the DB interface for SQLite
type sqliteDB struct {
	*sql.DB
}

// Record is one stored audit event. Embedding is nil for events stored
// without a vector, which then take part in SQL queries but not in search.
type Record struct {
	DocID     string
	LogID     string
	Position  int
	Event     models.AuditEvent
	Document  string
	Embedding []float64
}

// Initialize opens a SQLite database and sets up the schema.
// The pool is limited to a single connection: an in-memory database lives
// only as long as its connection, and all statements serialize on it.
func Initialize(dsn string) (DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &sqliteDB{sqlDB}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables sets up the database schema.
// Columns are named after the event metadata keys so that ad-hoc queries
// read the same as the JSON output.
func createTables(db DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_id TEXT NOT NULL UNIQUE,
		log_id TEXT NOT NULL,
		position INTEGER NOT NULL CHECK (position >= 0),
		timestamp TEXT NOT NULL,
		os_username TEXT NOT NULL,
		db_username TEXT NOT NULL,
		action_name TEXT NOT NULL,
		object_name TEXT NOT NULL,
		object_schema TEXT NOT NULL,
		client_program TEXT NOT NULL,
		userhost TEXT NOT NULL,
		session_id TEXT NOT NULL,
		instance TEXT NOT NULL,
		raw_line TEXT NOT NULL,
		document TEXT NOT NULL,
		embedding TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_log_id ON audit_events(log_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_os_username ON audit_events(os_username);
	CREATE INDEX IF NOT EXISTS idx_audit_events_action_name ON audit_events(action_name);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_object_schema ON audit_events(object_schema);
	`

	_, err := db.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// InsertRecords inserts records in a single transaction. Existing rows with
// the same doc id are replaced.
func InsertRecords(db DB, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT OR REPLACE INTO audit_events (
		doc_id, log_id, position, timestamp, os_username, db_username, action_name,
		object_name, object_schema, client_program, userhost, session_id, instance,
		raw_line, document, embedding
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var insertedCount int64
	for _, r := range records {
		embedding, err := encodeEmbedding(r.Embedding)
		if err != nil {
			return 0, err
		}

		e := r.Event
		_, err = stmt.Exec(r.DocID, r.LogID, r.Position, e.Timestamp, e.OSUsername, e.DBUsername,
			e.ActionName, e.ObjectName, e.ObjectSchema, e.ClientProgram, e.UserHost, e.SessionID,
			e.Instance, e.RawLine, r.Document, embedding)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record %s: %w", r.DocID, err)
		}
		insertedCount++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}
	return insertedCount, nil
}

// InsertEvents stores events without embeddings under the given log id
func InsertEvents(db DB, logID string, events []models.AuditEvent) (int64, error) {
	records := make([]Record, len(events))
	for i, e := range events {
		records[i] = Record{
			DocID:    DocID(logID, i),
			LogID:    logID,
			Position: i,
			Event:    e,
			Document: e.Document(),
		}
	}
	return InsertRecords(db, records)
}

// DocID names the document for the event at position i of a log
func DocID(logID string, i int) string {
	return fmt.Sprintf("%s/event_%d", logID, i)
}

// DeleteLog removes every record of a log and returns the number removed
func DeleteLog(db DB, logID string) (int64, error) {
	result, err := db.Exec("DELETE FROM audit_events WHERE log_id = ?", logID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete log %s: %w", logID, err)
	}
	return result.RowsAffected()
}

// DeleteAll removes every record
func DeleteAll(db DB) error {
	if _, err := db.Exec("DELETE FROM audit_events"); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// LoadEmbedded returns every record that carries an embedding, ordered by
// log and position. An empty logID loads records of all logs.
func LoadEmbedded(db DB, logID string) ([]Record, error) {
	query := `
	SELECT doc_id, log_id, position, timestamp, os_username, db_username, action_name,
		object_name, object_schema, client_program, userhost, session_id, instance,
		raw_line, document, embedding
	FROM audit_events
	WHERE embedding IS NOT NULL AND (? = '' OR log_id = ?)
	ORDER BY log_id, position
	`
	rows, err := db.Query(query, logID, logID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r         Record
			e         = &r.Event
			embedding string
		)
		if err := rows.Scan(&r.DocID, &r.LogID, &r.Position, &e.Timestamp, &e.OSUsername,
			&e.DBUsername, &e.ActionName, &e.ObjectName, &e.ObjectSchema, &e.ClientProgram,
			&e.UserHost, &e.SessionID, &e.Instance, &e.RawLine, &r.Document, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &r.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding of %s: %w", r.DocID, err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// QueryResult holds the rows of a query together with its column order
type QueryResult struct {
	Columns []string
	Rows    []map[string]interface{}
}

// ExecuteQuery executes a SQL query and returns the results as a slice of maps
func ExecuteQuery(db DB, query string) ([]map[string]interface{}, error) {
	result, err := ExecuteQueryWithColumns(db, query)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// ExecuteQueryWithColumns executes a SQL query and keeps the column order of
// the result set, for tabular display
func ExecuteQueryWithColumns(db DB, query string) (*QueryResult, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{Columns: columns}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))

		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{})
		for i, column := range columns {
			// Convert byte slices to strings
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[column] = val
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// encodeEmbedding stores vectors as JSON text; nil maps to NULL
func encodeEmbedding(v []float64) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return string(data), nil
}
