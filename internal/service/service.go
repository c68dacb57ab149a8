// Package service is the inbound surface of the audit pipeline. It ties the
// registry, the semantic index and the answer pipeline together for the HTTP
// server and the CLI.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"oracle-audit-analyzer/internal/analytics"
	"oracle-audit-analyzer/internal/answer"
	"oracle-audit-analyzer/internal/apperror"
	"oracle-audit-analyzer/internal/metrics"
	"oracle-audit-analyzer/internal/models"
	"oracle-audit-analyzer/internal/parser"
	"oracle-audit-analyzer/internal/registry"
	"oracle-audit-analyzer/internal/retrieval"
)

// Indexer stores events for semantic search
type Indexer interface {
	Index(ctx context.Context, docs []retrieval.Document) error
	DeleteLog(ctx context.Context, logID string) error
	Reset(ctx context.Context) error
}

// Answerer answers a question, optionally scoped to one log
type Answerer interface {
	Answer(ctx context.Context, question, logID string) answer.Result
}

// IngestResult describes an ingested log
type IngestResult struct {
	LogID        string `json:"log_id"`
	Filename     string `json:"filename"`
	EventCount   int    `json:"events_count"`
	SkippedLines int    `json:"skipped_lines"`
	Summary      string `json:"summary"`
	Indexed      bool   `json:"indexed"` // false when the semantic index rejected the events
}

// PatternResult is an ad-hoc analysis of content that is not stored
type PatternResult struct {
	EventCount   int                   `json:"events_count"`
	SkippedLines int                   `json:"skipped_lines"`
	Patterns     models.AnalysisReport `json:"patterns"`
}

// Service implements the inbound operations.
// Writes to one log id, registry and index together, run one at a time.
// ClearAll excludes every write.
type Service struct {
	writes  sync.RWMutex
	idLocks keyedMutex

	registry   *registry.Registry
	index      Indexer
	answerer   Answerer
	thresholds analytics.Thresholds
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithThresholds sets the thresholds used by ad-hoc pattern analysis. Stored
// logs are analyzed with the registry's own thresholds.
func WithThresholds(th analytics.Thresholds) Option {
	return func(s *Service) {
		s.thresholds = th
	}
}

// New creates a service over its collaborators
func New(reg *registry.Registry, index Indexer, answerer Answerer, opts ...Option) *Service {
	s := &Service{
		registry:   reg,
		index:      index,
		answerer:   answerer,
		thresholds: analytics.DefaultThresholds(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestLog parses and stores content under id, then indexes its events for
// semantic search. An empty id is derived from the content. Blank content is
// rejected; content without any audit line is stored with zero events.
// A failing index does not fail the ingest: the log is still analyzable and
// the result reports Indexed=false.
func (s *Service) IngestLog(ctx context.Context, id, filename, content string) (IngestResult, error) {
	if strings.TrimSpace(content) == "" {
		return IngestResult{}, apperror.EmptyInput("log content is empty")
	}
	if id == "" {
		id = models.DeriveLogID(content)
	}

	s.writes.RLock()
	defer s.writes.RUnlock()
	unlock := s.idLocks.lock(id)
	defer unlock()

	entry := s.registry.Ingest(id, filename, content)

	report, err := s.registry.AnalysisFor(id)
	if err != nil {
		return IngestResult{}, err
	}

	result := IngestResult{
		LogID:        id,
		Filename:     filename,
		EventCount:   len(entry.Events),
		SkippedLines: entry.SkippedLines,
		Summary:      analytics.Summary(report),
	}

	if err := s.reindex(ctx, id, entry.Events); err != nil {
		s.logger.Warn("indexing failed, log stored without semantic search",
			zap.String("log_id", id), zap.Error(err))
	} else {
		result.Indexed = true
	}

	return result, nil
}

// reindex replaces the indexed events of a log
func (s *Service) reindex(ctx context.Context, id string, events []models.AuditEvent) error {
	start := time.Now()
	err := s.index.DeleteLog(ctx, id)
	if err == nil {
		err = s.index.Index(ctx, retrieval.DocumentsFor(id, events))
	}
	s.metrics.ObserveCall(metrics.CollaboratorIndexer, start, err)
	return err
}

// GetAnalysis returns the (cached) analysis of a stored log
func (s *Service) GetAnalysis(id string) (models.AnalysisReport, error) {
	return s.registry.AnalysisFor(id)
}

// GetLog returns a stored log
func (s *Service) GetLog(id string) (models.LogEntry, error) {
	return s.registry.Get(id)
}

// AnswerQuestion answers a question, restricted to one log when logID is set.
// Failures, including an unknown or empty log, come back as error results.
func (s *Service) AnswerQuestion(ctx context.Context, question, logID string) answer.Result {
	if strings.TrimSpace(question) == "" {
		return answer.ErrorResult(apperror.EmptyInput("question is empty"))
	}

	if logID != "" {
		entry, err := s.registry.Get(logID)
		if err != nil {
			return answer.ErrorResult(err)
		}
		if len(entry.Events) == 0 {
			return answer.ErrorResult(apperror.EmptyInput("log " + logID + " has no audit events"))
		}
	}

	return s.answerer.Answer(ctx, question, logID)
}

// AskWithLog ingests content and answers the question against that log only
func (s *Service) AskWithLog(ctx context.Context, question, filename, content string) (IngestResult, answer.Result, error) {
	ingested, err := s.IngestLog(ctx, "", filename, content)
	if err != nil {
		return IngestResult{}, answer.Result{}, err
	}
	return ingested, s.AnswerQuestion(ctx, question, ingested.LogID), nil
}

// AnalyzeContent parses and analyzes content without storing it
func (s *Service) AnalyzeContent(content string) PatternResult {
	parsed := parser.Parse(content)
	return PatternResult{
		EventCount:   len(parsed.Events),
		SkippedLines: parsed.Skipped,
		Patterns:     analytics.Analyze(parsed.Events, s.thresholds),
	}
}

// ClearAll removes every stored log and its indexed events
func (s *Service) ClearAll(ctx context.Context) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	s.registry.ClearAll()
	return s.index.Reset(ctx)
}

// ListLogs returns the status of every stored log, sorted by id
func (s *Service) ListLogs() []models.LogStatus {
	return s.registry.List()
}
