package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracle-audit-analyzer/internal/config"
	"oracle-audit-analyzer/internal/server"
)

// NewServeCommand creates the 'serve' subcommand that runs the HTTP API
// Usage: oracle-audit-analyzer serve [--addr :8000]
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API for uploading audit logs and asking questions about them.

Endpoints:
  GET    /                        health check
  POST   /api/upload-logs         upload an audit file (multipart field "file")
  POST   /api/ask-llm             {"question": "...", "log_id": "..."}
  POST   /api/analyze-patterns    analyze a log without storing it
  GET    /api/logs                list stored logs
  GET    /api/logs/{id}           a stored log with its events
  GET    /api/logs/{id}/analysis  analysis of a stored log
  DELETE /api/logs                remove every stored log
  GET    /api/sample-questions    example questions
  GET    /api/model-info          generation and embedding models in use
  GET    /metrics                 Prometheus metrics

The server stops gracefully on SIGINT or SIGTERM.

Example:
  oracle-audit-analyzer serve --addr :8000
  AUDIT_OLLAMA__MODEL=mistral oracle-audit-analyzer serve --config audit.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			app, err := NewApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(app.Service, cfg.Server,
				server.WithLogger(app.Logger),
				server.WithGatherer(app.Registry),
				server.WithHealthCheck(app.Ollama.CheckRunning),
				server.WithModelInfo(modelInfo(cfg)))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, srv, app.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

// modelInfo describes the configured models for the model-info endpoint
func modelInfo(cfg *config.Config) server.ModelInfo {
	info := server.ModelInfo{
		ModelName:      cfg.Ollama.Model,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
		Embedder:       cfg.Retrieval.Embedder,
		VectorDB:       "sqlite " + cfg.Database.DSN,
	}
	if cfg.Retrieval.Embedder == config.EmbedderHashing {
		info.EmbeddingModel = fmt.Sprintf("feature hashing (%d dimensions)", cfg.Retrieval.Dimensions)
	}
	return info
}

func runServer(ctx context.Context, srv *server.Server, logger *zap.Logger) error {
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
