// Package commands implements the CLI commands for the Oracle audit analyzer
package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracle-audit-analyzer/internal/answer"
	"oracle-audit-analyzer/internal/config"
	"oracle-audit-analyzer/internal/database"
	"oracle-audit-analyzer/internal/logging"
	"oracle-audit-analyzer/internal/metrics"
	"oracle-audit-analyzer/internal/ollama"
	"oracle-audit-analyzer/internal/registry"
	"oracle-audit-analyzer/internal/retrieval"
	"oracle-audit-analyzer/internal/service"
)

// configFlag is the persistent flag holding the YAML configuration path
const configFlag = "config"

// App holds the components wired from a configuration
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	DB       database.DB
	Ollama   *ollama.Client
	Service  *service.Service
}

// loadConfig loads the configuration named by the --config flag, if any
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var path string
	if f := cmd.Flags().Lookup(configFlag); f != nil {
		path = f.Value.String()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// NewApp wires the store, the Ollama client, the answer pipeline and the
// service from cfg. The caller must Close the app.
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.Initialize(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := ollama.NewClient(ollama.Config{
		BaseURL:        cfg.Ollama.BaseURL,
		Timeout:        cfg.Ollama.Timeout,
		Model:          cfg.Ollama.Model,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
	})

	var embedder retrieval.Embedder = client
	if cfg.Retrieval.Embedder == config.EmbedderHashing {
		embedder = retrieval.NewHashingEmbedder(cfg.Retrieval.Dimensions)
	}

	store := retrieval.NewStore(db, embedder,
		retrieval.WithConcurrency(cfg.Retrieval.IndexConcurrency),
		retrieval.WithLogger(logger))

	pipeline := answer.New(store, client, answer.Options{
		TopK:            cfg.Pipeline.TopK,
		MaxAnswerLength: cfg.Pipeline.MaxAnswerLength,
		CallTimeout:     cfg.Pipeline.CallTimeout,
	}, logger, m)

	thresholds := cfg.Anomaly.Thresholds()
	logs := registry.New(
		registry.WithThresholds(thresholds),
		registry.WithLogger(logger),
		registry.WithMetrics(m))

	svc := service.New(logs, store, pipeline,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithThresholds(thresholds))

	logger.Debug("components wired",
		zap.String("embedder", cfg.Retrieval.Embedder),
		zap.String("model", cfg.Ollama.Model),
		zap.String("dsn", cfg.Database.DSN))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		DB:       db,
		Ollama:   client,
		Service:  svc,
	}, nil
}

// Close releases the database and flushes the logger
func (a *App) Close() error {
	_ = a.Logger.Sync()
	return a.DB.Close()
}
