// Package metrics defines the Prometheus instruments of the audit pipeline.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collaborator labels for external call durations
const (
	CollaboratorRetriever = "retriever"
	CollaboratorGenerator = "generator"
	CollaboratorIndexer   = "indexer"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the registered collectors
type Metrics struct {
	logsIngested  prometheus.Counter
	eventsParsed  prometheus.Counter
	linesSkipped  prometheus.Counter
	analysisCache *prometheus.CounterVec
	answers       *prometheus.CounterVec
	externalCalls *prometheus.HistogramVec
}

// New registers the audit metrics with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		logsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "logs_ingested_total",
			Help:      "Total number of audit logs ingested",
		}),
		eventsParsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "events_parsed_total",
			Help:      "Total number of audit events extracted from ingested logs",
		}),
		linesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "lines_skipped_total",
			Help:      "Total number of non-blank lines that matched no audit pattern",
		}),
		analysisCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "analysis_cache_total",
			Help:      "Analysis lookups by cache result",
		}, []string{"result"}),
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audit",
			Name:      "answers_total",
			Help:      "Answered questions by category, including the error category",
		}, []string{"category"}),
		externalCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "audit",
			Name:      "external_call_duration_seconds",
			Help:      "Duration of calls to the retrieval and generation collaborators",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
		}, []string{"collaborator", "outcome"}),
	}
}

// LogIngested records one ingested log
func (m *Metrics) LogIngested(events, skipped int) {
	if m == nil {
		return
	}
	m.logsIngested.Inc()
	m.eventsParsed.Add(float64(events))
	m.linesSkipped.Add(float64(skipped))
}

// AnalysisLookup records an analysis cache hit or miss
func (m *Metrics) AnalysisLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.analysisCache.WithLabelValues(result).Inc()
}

// Answer records one answered question
func (m *Metrics) Answer(category string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(category).Inc()
}

// ObserveCall records the duration of an external call started at start
func (m *Metrics) ObserveCall(collaborator string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.externalCalls.WithLabelValues(collaborator, outcome).Observe(time.Since(start).Seconds())
}
