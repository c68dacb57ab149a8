// Package models defines the data structures used throughout the application
package models

import (
	"fmt"
)

// AuditEvent represents a single record extracted from an Oracle audit trail.
// Values are never mutated after the parser creates them.
type AuditEvent struct {
	Timestamp     string `db:"timestamp" json:"timestamp"`           // YYYY-MM-DD HH:MM:SS
	OSUsername    string `db:"os_username" json:"os_username"`       // Operating system account
	DBUsername    string `db:"db_username" json:"db_username"`       // Database account
	ActionName    string `db:"action_name" json:"action_name"`       // SELECT, INSERT, LOGON, ...
	ObjectName    string `db:"object_name" json:"object_name"`       // Target object
	ObjectSchema  string `db:"object_schema" json:"object_schema"`   // Owner of the target object
	ClientProgram string `db:"client_program" json:"client_program"` // e.g. sqlplus.exe
	UserHost      string `db:"userhost" json:"userhost"`             // Client machine
	SessionID     string `db:"session_id" json:"session_id"`
	Instance      string `db:"instance" json:"instance"`
	RawLine       string `db:"raw_line" json:"raw_line"` // Source line, kept for traceability
}

// String returns a human-readable representation of the audit event
func (e AuditEvent) String() string {
	return fmt.Sprintf("%s: %s/%s %s %s.%s",
		e.Timestamp,
		e.OSUsername,
		e.DBUsername,
		e.ActionName,
		e.ObjectSchema,
		e.ObjectName)
}

// Metadata returns the event fields used as retrieval metadata.
// Keys match the JSON tags; the raw line is left out.
func (e AuditEvent) Metadata() map[string]string {
	return map[string]string{
		"timestamp":      e.Timestamp,
		"os_username":    e.OSUsername,
		"db_username":    e.DBUsername,
		"action_name":    e.ActionName,
		"object_name":    e.ObjectName,
		"object_schema":  e.ObjectSchema,
		"client_program": e.ClientProgram,
		"userhost":       e.UserHost,
		"session_id":     e.SessionID,
		"instance":       e.Instance,
	}
}

// Document returns the text representation indexed for semantic search
func (e AuditEvent) Document() string {
	return fmt.Sprintf("Timestamp: %s, User: %s/%s, Action: %s, Object: %s.%s, Program: %s, Host: %s",
		e.Timestamp, e.OSUsername, e.DBUsername, e.ActionName,
		e.ObjectSchema, e.ObjectName, e.ClientProgram, e.UserHost)
}

// ContextSentence renders retrieval metadata as the sentence embedded in prompts.
// Missing keys render as empty strings.
func ContextSentence(meta map[string]string) string {
	return fmt.Sprintf("%s (%s) performed %s on %s.%s via %s from %s",
		meta["os_username"], meta["db_username"], meta["action_name"],
		meta["object_schema"], meta["object_name"], meta["client_program"], meta["userhost"])
}
