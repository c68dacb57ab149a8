package models

// Frequency is one value with its occurrence count
type Frequency struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Frequencies is ordered by descending count, ties in first-encountered order
type Frequencies []Frequency

// Map returns the mapping view of the frequencies
func (f Frequencies) Map() map[string]int {
	m := make(map[string]int, len(f))
	for _, fr := range f {
		m[fr.Value] = fr.Count
	}
	return m
}

// Values returns up to n values in order. n <= 0 returns all of them.
func (f Frequencies) Values(n int) []string {
	if n <= 0 || n > len(f) {
		n = len(f)
	}
	values := make([]string, 0, n)
	for _, fr := range f[:n] {
		values = append(values, fr.Value)
	}
	return values
}

// TimeRange holds the lexicographic min and max timestamps of an event set
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AnalysisReport is the aggregate and anomaly analysis of an event set.
// Empty is set when there was nothing to analyze, so callers can tell
// "no data" apart from "data without anomalies".
type AnalysisReport struct {
	TotalEvents          int         `json:"total_events"`
	UniqueUsers          int         `json:"unique_users"`
	Actions              Frequencies `json:"unique_actions"`
	TopPrograms          Frequencies `json:"top_programs"`
	TopObjects           Frequencies `json:"top_objects"`
	TimeRange            TimeRange   `json:"time_range"`
	SuspiciousActivities []string    `json:"suspicious_activities"`
	Empty                bool        `json:"empty,omitempty"`
	Message              string      `json:"message,omitempty"`
}
