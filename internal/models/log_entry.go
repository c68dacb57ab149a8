package models

import (
	"fmt"
	"hash/fnv"
	"time"
)

// LogEntry represents one ingested audit file and its derived state
type LogEntry struct {
	ID           string          `json:"id"`
	Filename     string          `json:"filename"`
	RawContent   string          `json:"-"`
	Events       []AuditEvent    `json:"events"`
	SkippedLines int             `json:"skipped_lines"` // Non-blank lines no pattern matched
	IngestedAt   time.Time       `json:"ingested_at"`
	Analysis     *AnalysisReport `json:"analysis,omitempty"` // Nil until first requested
}

// Status returns the listing view of the entry
func (l LogEntry) Status() LogStatus {
	return LogStatus{
		ID:           l.ID,
		Filename:     l.Filename,
		EventCount:   len(l.Events),
		SkippedLines: l.SkippedLines,
		Analyzed:     l.Analysis != nil,
	}
}

// String returns a human-readable representation of the log entry
func (l LogEntry) String() string {
	return fmt.Sprintf("%s (%s): %d events, %d skipped lines",
		l.ID,
		l.Filename,
		len(l.Events),
		l.SkippedLines)
}

// LogStatus is a summary row used for status reporting
type LogStatus struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	EventCount   int    `json:"event_count"`
	SkippedLines int    `json:"skipped_lines"`
	Analyzed     bool   `json:"analyzed"`
}

// DeriveLogID builds a log identifier from the content length and a content hash
// reduced modulo 10000. The result is deterministic but NOT unique: different
// contents of the same length collide one time in ten thousand.
func DeriveLogID(content string) string {
	h := fnv.New32a()
	h.Write([]byte(content))
	return fmt.Sprintf("log_%d_%d", len(content), h.Sum32()%10000)
}
