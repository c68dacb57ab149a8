// Package answer turns a natural-language question into an answer grounded
// in retrieved audit events.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"oracle-audit-analyzer/internal/apperror"
	"oracle-audit-analyzer/internal/classifier"
	"oracle-audit-analyzer/internal/metrics"
	"oracle-audit-analyzer/internal/models"
	"oracle-audit-analyzer/internal/retrieval"
)

// PlaceholderConfidence is reported on every successful answer. It is a fixed
// value, not a score computed from the retrieval or the generation.
const PlaceholderConfidence = 0.85

// ErrorCategory is the category reported on failed answers
const ErrorCategory = "error"

// contextSeparator joins the per-event context sentences
const contextSeparator = " | "

// Retriever finds the stored events most similar to a query
type Retriever interface {
	Search(ctx context.Context, q retrieval.Query) ([]retrieval.Match, error)
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options tunes the pipeline
type Options struct {
	TopK            int
	MaxAnswerLength int           // in characters; longer answers are cut and get "..."
	CallTimeout     time.Duration // applies to each collaborator call separately
}

// DefaultOptions returns the standard pipeline options
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		MaxAnswerLength: 500,
		CallTimeout:     30 * time.Second,
	}
}

// Result is the outcome of answering one question
type Result struct {
	Answer     string              `json:"answer"`
	Confidence float64             `json:"confidence"`
	Category   string              `json:"analysis_type"`
	Sources    []map[string]string `json:"sources"`
	Error      string              `json:"error,omitempty"`
	ErrorCode  apperror.Code       `json:"error_code,omitempty"`
}

// Failed reports whether the result is an error result
func (r Result) Failed() bool {
	return r.Category == ErrorCategory
}

var promptTemplates = map[classifier.Category]string{
	classifier.UserAnalysis:        "Analyse les utilisateurs dans ces logs d'audit Oracle: %s. Question: %s",
	classifier.ActionAnalysis:      "Analyse les actions dans ces logs d'audit Oracle: %s. Question: %s",
	classifier.SecurityAnalysis:    "Analyse la sécurité dans ces logs d'audit Oracle: %s. Question: %s",
	classifier.PerformanceAnalysis: "Analyse les performances dans ces logs d'audit Oracle: %s. Question: %s",
}

// Pipeline answers questions using a retriever and a generator
type Pipeline struct {
	retriever Retriever
	generator Generator
	opts      Options
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a pipeline. Zero options fall back to DefaultOptions; logger
// and metrics may be nil.
func New(retriever Retriever, generator Generator, opts Options, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	defaults := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = defaults.TopK
	}
	if opts.MaxAnswerLength <= 0 {
		opts.MaxAnswerLength = defaults.MaxAnswerLength
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaults.CallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		retriever: retriever,
		generator: generator,
		opts:      opts,
		logger:    logger,
		metrics:   m,
	}
}

// Answer classifies the question, retrieves related events (restricted to
// logID when it is not empty), and asks the generator. It never returns a
// partial result: any failure yields an error result with zero confidence
// and no sources.
func (p *Pipeline) Answer(ctx context.Context, question, logID string) Result {
	if err := ctx.Err(); err != nil {
		return p.fail(question, err)
	}

	category := classifier.Classify(question)

	matches, err := p.search(ctx, question, logID)
	if err != nil {
		return p.fail(question, apperror.Retrieval(err))
	}

	prompt := BuildPrompt(category, question, matches)

	generated, err := p.generate(ctx, prompt)
	if err != nil {
		return p.fail(question, apperror.Generation(err))
	}

	sources := make([]map[string]string, len(matches))
	for i, m := range matches {
		sources[i] = m.Metadata
	}

	p.metrics.Answer(string(category))
	p.logger.Info("question answered",
		zap.String("category", string(category)),
		zap.String("log_id", logID),
		zap.Int("sources", len(sources)))

	return Result{
		Answer:     ExtractAnswer(generated, prompt, p.opts.MaxAnswerLength),
		Confidence: PlaceholderConfidence,
		Category:   string(category),
		Sources:    sources,
	}
}

func (p *Pipeline) search(ctx context.Context, question, logID string) ([]retrieval.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	matches, err := p.retriever.Search(ctx, retrieval.Query{Text: question, TopK: p.opts.TopK, LogID: logID})
	p.metrics.ObserveCall(metrics.CollaboratorRetriever, start, err)
	return matches, err
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	out, err := p.generator.Generate(ctx, prompt)
	p.metrics.ObserveCall(metrics.CollaboratorGenerator, start, err)
	return out, err
}

func (p *Pipeline) fail(question string, err error) Result {
	p.metrics.Answer(ErrorCategory)
	p.logger.Warn("answer failed", zap.String("question", question), zap.Error(err))
	return ErrorResult(err)
}

// ErrorResult builds the zero-confidence result reported for a failure
func ErrorResult(err error) Result {
	return Result{
		Answer:     "analysis failed: " + err.Error(),
		Confidence: 0,
		Category:   ErrorCategory,
		Sources:    []map[string]string{},
		Error:      err.Error(),
		ErrorCode:  apperror.CodeOf(err),
	}
}

// BuildPrompt formats the category prompt around the retrieved context
func BuildPrompt(category classifier.Category, question string, matches []retrieval.Match) string {
	sentences := make([]string, len(matches))
	for i, m := range matches {
		sentences[i] = models.ContextSentence(m.Metadata)
	}

	tmpl, ok := promptTemplates[category]
	if !ok {
		tmpl = promptTemplates[classifier.PerformanceAnalysis]
	}
	return fmt.Sprintf(tmpl, strings.Join(sentences, contextSeparator), question)
}

// ExtractAnswer strips an echoed prompt from generated text and cuts the
// remainder to maxLen characters, marking the cut with "...".
func ExtractAnswer(generated, prompt string, maxLen int) string {
	answer := strings.TrimSpace(strings.TrimPrefix(generated, prompt))
	if maxLen > 0 && utf8.RuneCountInString(answer) > maxLen {
		answer = string([]rune(answer)[:maxLen]) + "..."
	}
	return answer
}
