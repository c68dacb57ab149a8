// Package analytics computes frequency and anomaly reports over audit events.
// Every function here is a pure function of its inputs.
package analytics

import (
	"fmt"
	"sort"
	"strings"

	"oracle-audit-analyzer/internal/models"
)

// NoEventsMessage is set on reports computed over an empty event set
const NoEventsMessage = "no events to analyze"

// Thresholds configures the anomaly heuristics. A finding is emitted only
// when a count strictly exceeds its threshold.
type Thresholds struct {
	SystemSchemaAccesses int
	DestructiveActions   int
	SessionsPerUser      int
	TopN                 int
	SystemSchema         string
	DestructiveNames     []string
}

// DefaultThresholds returns the standard anomaly configuration
func DefaultThresholds() Thresholds {
	return Thresholds{
		SystemSchemaAccesses: 10,
		DestructiveActions:   5,
		SessionsPerUser:      10,
		TopN:                 5,
		SystemSchema:         "SYS",
		DestructiveNames:     []string{"DELETE", "TRUNCATE", "DROP"},
	}
}

// Analyze builds the analysis report for an event set
func Analyze(events []models.AuditEvent, th Thresholds) models.AnalysisReport {
	if len(events) == 0 {
		return models.AnalysisReport{
			Actions:              models.Frequencies{},
			TopPrograms:          models.Frequencies{},
			TopObjects:           models.Frequencies{},
			SuspiciousActivities: []string{},
			Empty:                true,
			Message:              NoEventsMessage,
		}
	}

	users := make(map[string]struct{})
	timeRange := models.TimeRange{Start: events[0].Timestamp, End: events[0].Timestamp}
	for _, e := range events {
		users[e.OSUsername] = struct{}{}
		if e.Timestamp < timeRange.Start {
			timeRange.Start = e.Timestamp
		}
		if e.Timestamp > timeRange.End {
			timeRange.End = e.Timestamp
		}
	}

	return models.AnalysisReport{
		TotalEvents:          len(events),
		UniqueUsers:          len(users),
		Actions:              countBy(events, func(e models.AuditEvent) string { return e.ActionName }),
		TopPrograms:          top(countBy(events, func(e models.AuditEvent) string { return e.ClientProgram }), th.TopN),
		TopObjects:           top(countBy(events, func(e models.AuditEvent) string { return e.ObjectName }), th.TopN),
		TimeRange:            timeRange,
		SuspiciousActivities: DetectSuspicious(events, th),
	}
}

// DetectSuspicious runs the three anomaly heuristics. They are independent:
// any combination of findings may be returned, always in the same order.
func DetectSuspicious(events []models.AuditEvent, th Thresholds) []string {
	findings := []string{}

	destructive := make(map[string]struct{}, len(th.DestructiveNames))
	for _, name := range th.DestructiveNames {
		destructive[name] = struct{}{}
	}

	sysAccesses := 0
	destructiveCount := 0
	sessionsByUser := make(map[string]map[string]struct{})
	for _, e := range events {
		if e.ObjectSchema == th.SystemSchema {
			sysAccesses++
		}
		if _, ok := destructive[e.ActionName]; ok {
			destructiveCount++
		}
		sessions, ok := sessionsByUser[e.OSUsername]
		if !ok {
			sessions = make(map[string]struct{})
			sessionsByUser[e.OSUsername] = sessions
		}
		sessions[e.SessionID] = struct{}{}
	}

	if sysAccesses > th.SystemSchemaAccesses {
		findings = append(findings, fmt.Sprintf("High number of system schema accesses (%d)", sysAccesses))
	}
	if destructiveCount > th.DestructiveActions {
		findings = append(findings, fmt.Sprintf("Destructive actions detected (%d)", destructiveCount))
	}

	// The offending user is not named in the finding.
	maxSessions := 0
	for _, sessions := range sessionsByUser {
		if len(sessions) > maxSessions {
			maxSessions = len(sessions)
		}
	}
	if maxSessions > th.SessionsPerUser {
		findings = append(findings, "User with too many concurrent sessions")
	}

	return findings
}

// Summary renders a report as a single line of text: counts, top three
// actions and the covered period.
func Summary(r models.AnalysisReport) string {
	if r.Empty {
		return "Summary: " + NoEventsMessage
	}
	return fmt.Sprintf("Summary: %d events analyzed. Unique users: %d. Top actions: %s. Period: %s to %s",
		r.TotalEvents,
		r.UniqueUsers,
		strings.Join(r.Actions.Values(3), ", "),
		r.TimeRange.Start,
		r.TimeRange.End)
}

// countBy counts events per key, ordered by descending count with ties kept
// in first-encountered order.
func countBy(events []models.AuditEvent, key func(models.AuditEvent) string) models.Frequencies {
	index := make(map[string]int)
	freqs := models.Frequencies{}
	for _, e := range events {
		k := key(e)
		if i, ok := index[k]; ok {
			freqs[i].Count++
			continue
		}
		index[k] = len(freqs)
		freqs = append(freqs, models.Frequency{Value: k, Count: 1})
	}

	sort.SliceStable(freqs, func(i, j int) bool {
		return freqs[i].Count > freqs[j].Count
	})
	return freqs
}

func top(freqs models.Frequencies, n int) models.Frequencies {
	if n > 0 && len(freqs) > n {
		return freqs[:n]
	}
	return freqs
}
