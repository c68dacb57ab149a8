// Package server exposes the audit pipeline over HTTP.
//
// Endpoints:
//   - GET    /                        - Health check
//   - POST   /api/upload-logs         - Upload an audit file (multipart field "file")
//   - POST   /api/ask-llm             - Ask a question, optionally scoped to a log
//   - POST   /api/analyze-patterns    - Analyze content without storing it
//   - GET    /api/logs                - List stored logs
//   - GET    /api/logs/{id}           - Get a stored log with its events
//   - GET    /api/logs/{id}/analysis  - Get the analysis of a stored log
//   - DELETE /api/logs                - Remove every stored log
//   - GET    /api/sample-questions    - Example questions
//   - GET    /api/model-info          - Models behind the answer pipeline
//   - GET    /metrics                 - Prometheus metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"oracle-audit-analyzer/internal/answer"
	"oracle-audit-analyzer/internal/config"
	"oracle-audit-analyzer/internal/models"
	"oracle-audit-analyzer/internal/service"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Service is the subset of service.Service the handlers use
type Service interface {
	IngestLog(ctx context.Context, id, filename, content string) (service.IngestResult, error)
	GetAnalysis(id string) (models.AnalysisReport, error)
	GetLog(id string) (models.LogEntry, error)
	AnswerQuestion(ctx context.Context, question, logID string) answer.Result
	AnalyzeContent(content string) service.PatternResult
	ClearAll(ctx context.Context) error
	ListLogs() []models.LogStatus
}

// HealthCheck reports whether a collaborator is reachable
type HealthCheck func(ctx context.Context) error

// ModelInfo describes the models behind the answer pipeline
type ModelInfo struct {
	ModelName      string `json:"model_name"`
	EmbeddingModel string `json:"embedding_model"`
	Embedder       string `json:"embedder"`
	VectorDB       string `json:"vector_db"`
}

// Server is the HTTP API server
type Server struct {
	svc       Service
	cfg       config.ServerConfig
	logger    *zap.Logger
	gatherer  prometheus.Gatherer
	health    HealthCheck
	modelInfo ModelInfo
	limiter   *rateLimiter
	router    chi.Router
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the metrics source served on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithModelInfo sets the description served on /api/model-info
func WithModelInfo(info ModelInfo) Option {
	return func(s *Server) {
		s.modelInfo = info
	}
}

// WithHealthCheck sets the generator probe used by the health endpoint
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) {
		s.health = check
	}
}

// New creates a server over svc and builds its routes
func New(svc Service, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		cfg:      cfg,
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
		limiter:  newRateLimiter(cfg.RateLimit),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Post("/upload-logs", s.handleUploadLogs)
		r.Post("/ask-llm", s.handleAskLLM)
		r.Post("/analyze-patterns", s.handleAnalyzePatterns)
		r.Get("/sample-questions", s.handleSampleQuestions)
		r.Get("/model-info", s.handleModelInfo)

		r.Get("/logs", s.handleListLogs)
		r.Delete("/logs", s.handleClearLogs)
		r.Get("/logs/{id}", s.handleGetLog)
		r.Get("/logs/{id}/analysis", s.handleGetAnalysis)
	})

	s.router = r
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.cfg.Addr), zap.String("version", Version))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// requestLogger logs one line per request with its status and duration
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())))
		})
	}
}
