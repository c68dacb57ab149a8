// Package registry keeps ingested audit logs in memory, keyed by log id, and
// caches their analysis.
//
// The registry map is guarded by a read/write lock. Each entry carries its
// own lock for its analysis cache, so analyses of different logs compute
// concurrently. Re-ingesting an id swaps in a fresh entry: a reader holding
// the old entry may still finish with the old analysis, but no lookup made
// after the write returns can observe it.
package registry

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"oracle-audit-analyzer/internal/analytics"
	"oracle-audit-analyzer/internal/apperror"
	"oracle-audit-analyzer/internal/metrics"
	"oracle-audit-analyzer/internal/models"
	"oracle-audit-analyzer/internal/parser"
)

type entry struct {
	log models.LogEntry // immutable after insertion

	mu       sync.Mutex
	analysis *models.AnalysisReport
}

// Registry is the in-memory store of ingested logs
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	thresholds analytics.Thresholds
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithThresholds sets the anomaly thresholds used for analysis
func WithThresholds(th analytics.Thresholds) Option {
	return func(r *Registry) {
		r.thresholds = th
	}
}

// WithLogger sets the registry logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New creates an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:    make(map[string]*entry),
		thresholds: analytics.DefaultThresholds(),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ingest parses content and stores it under id, replacing any previous log
// with that id along with its cached analysis. Content without a single
// matching line still creates an entry with zero events.
func (r *Registry) Ingest(id, filename, content string) models.LogEntry {
	result := parser.Parse(content)

	e := &entry{
		log: models.LogEntry{
			ID:           id,
			Filename:     filename,
			RawContent:   content,
			Events:       result.Events,
			SkippedLines: result.Skipped,
			IngestedAt:   r.now(),
		},
	}

	r.mu.Lock()
	_, replaced := r.entries[id]
	r.entries[id] = e
	r.mu.Unlock()

	r.metrics.LogIngested(len(result.Events), result.Skipped)
	r.logger.Info("log ingested",
		zap.String("log_id", id),
		zap.String("filename", filename),
		zap.Int("events", len(result.Events)),
		zap.Int("skipped_lines", result.Skipped),
		zap.Bool("replaced", replaced))

	return e.snapshot()
}

// Get returns a copy of the log stored under id
func (r *Registry) Get(id string) (models.LogEntry, error) {
	e, err := r.lookup(id)
	if err != nil {
		return models.LogEntry{}, err
	}
	return e.snapshot(), nil
}

// AnalysisFor returns the analysis of the log stored under id, computing and
// caching it on first request. Logs with no events yield a report marked Empty.
func (r *Registry) AnalysisFor(id string) (models.AnalysisReport, error) {
	e, err := r.lookup(id)
	if err != nil {
		return models.AnalysisReport{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.analysis != nil {
		r.metrics.AnalysisLookup(true)
		return *e.analysis, nil
	}

	report := analytics.Analyze(e.log.Events, r.thresholds)
	e.analysis = &report
	r.metrics.AnalysisLookup(false)
	r.logger.Debug("analysis computed",
		zap.String("log_id", id),
		zap.Int("suspicious_activities", len(report.SuspiciousActivities)))

	return report, nil
}

// ClearAll removes every log
func (r *Registry) ClearAll() {
	r.mu.Lock()
	n := len(r.entries)
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	r.logger.Info("registry cleared", zap.Int("logs_removed", n))
}

// List returns the status of every log, sorted by id
func (r *Registry) List() []models.LogStatus {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	statuses := make([]models.LogStatus, len(entries))
	for i, e := range entries {
		statuses[i] = e.snapshot().Status()
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ID < statuses[j].ID
	})
	return statuses
}

// Len returns the number of stored logs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperror.NotFound(id)
	}
	return e, nil
}

// snapshot copies the entry so callers cannot reach registry state
func (e *entry) snapshot() models.LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.log
	log.Events = append([]models.AuditEvent(nil), e.log.Events...)
	if e.analysis != nil {
		report := *e.analysis
		log.Analysis = &report
	}
	return log
}
