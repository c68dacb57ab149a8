// Package parser turns Oracle audit trail text into structured audit events
package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"oracle-audit-analyzer/internal/models"
)

// Result holds the events extracted from a piece of content.
// Skipped counts non-blank lines that no pattern matched; such lines are
// dropped rather than reported as errors.
type Result struct {
	Events  []models.AuditEvent
	Lines   int // Non-blank lines examined
	Skipped int
}

// linePattern extracts the ten event fields from one line, or reports no match
type linePattern struct {
	name  string
	match func(line string) ([]string, bool)
}

const timestampExpr = `\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`

var (
	timestampRegex = regexp.MustCompile(timestampExpr)

	// Labels of the standard format, in event field order after the timestamp
	standardLabels = []string{
		"OS_USERNAME",
		"DBUSERNAME",
		"ACTION_NAME",
		"OBJECT_NAME",
		"OBJECT_SCHEMA",
		"CLIENT_PROGRAM_NAME",
		"USERHOST",
		"SESSIONID",
		"INSTANCE",
	}
	standardLabelRegexes = compileLabelRegexes(standardLabels)

	// Simple format: timestamp followed by nine positional comma-separated fields
	simpleRegex = regexp.MustCompile(`(` + timestampExpr + `).*?([^,]+),([^,]+),([^,]+),([^,]+),([^,]+),([^,]+),([^,]+),([^,]+),([^,]+)`)

	// patterns are tried in order; the first match wins
	patterns = []linePattern{
		{name: "standard", match: matchStandard},
		{name: "simple", match: matchSimple},
	}
)

// compileLabelRegexes builds one LABEL=value extractor per label. A label must
// not be preceded by a letter or underscore so that e.g. USERHOST does not
// match inside a longer label.
func compileLabelRegexes(labels []string) []*regexp.Regexp {
	regexes := make([]*regexp.Regexp, len(labels))
	for i, label := range labels {
		regexes[i] = regexp.MustCompile(`(?:^|[^A-Za-z_])` + label + `=([^,]*)`)
	}
	return regexes
}

// Parse extracts audit events from log content. It never fails: content with
// no matching lines yields an empty result. Event order follows line order.
func Parse(content string) Result {
	var result Result

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.Lines++

		event, ok := parseLine(line)
		if !ok {
			result.Skipped++
			continue
		}
		result.Events = append(result.Events, event)
	}

	return result
}

// ParseFile reads an audit log file and parses its content
func ParseFile(filePath string) (Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read audit log file: %w", err)
	}
	return Parse(string(data)), nil
}

// parseLine tries every pattern in order against a single line
func parseLine(line string) (models.AuditEvent, bool) {
	for _, p := range patterns {
		fields, ok := p.match(line)
		if !ok {
			continue
		}
		return newEvent(fields, line), true
	}
	return models.AuditEvent{}, false
}

// matchStandard extracts labeled fields in any order
func matchStandard(line string) ([]string, bool) {
	ts := timestampRegex.FindString(line)
	if ts == "" {
		return nil, false
	}

	fields := make([]string, 0, 10)
	fields = append(fields, ts)
	for _, re := range standardLabelRegexes {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		fields = append(fields, m[1])
	}
	return fields, true
}

// matchSimple extracts positional fields
func matchSimple(line string) ([]string, bool) {
	m := simpleRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// newEvent maps ten captured fields onto an event, in field order
func newEvent(fields []string, line string) models.AuditEvent {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return models.AuditEvent{
		Timestamp:     fields[0],
		OSUsername:    fields[1],
		DBUsername:    fields[2],
		ActionName:    fields[3],
		ObjectName:    fields[4],
		ObjectSchema:  fields[5],
		ClientProgram: fields[6],
		UserHost:      fields[7],
		SessionID:     fields[8],
		Instance:      fields[9],
		RawLine:       line,
	}
}
