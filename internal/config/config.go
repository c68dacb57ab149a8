// Package config provides shared configuration constants and the layered
// runtime configuration of the audit analyzer
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"oracle-audit-analyzer/internal/analytics"
)

const (
	// DefaultDSN keeps the event store in memory; nothing outlives the process
	DefaultDSN = ":memory:"

	// DatabaseDSNDescription is the help text description for the database flag
	DatabaseDSNDescription = "SQLite data source name for the event store"

	// ConfigFileDescription is the help text description for the config flag
	ConfigFileDescription = "Path to YAML configuration file (optional)"

	// AuditFileDescription is the help text description for the audit file flag
	AuditFileDescription = "Path to Oracle audit log file (required)"

	// EnvPrefix prefixes every configuration environment variable.
	// Nested keys are separated by a double underscore, e.g. AUDIT_SERVER__ADDR.
	EnvPrefix = "AUDIT_"

	// Embedder names
	EmbedderOllama  = "ollama"
	EmbedderHashing = "hashing"
)

// Config is the full runtime configuration
type Config struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Ollama    OllamaConfig    `koanf:"ollama"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Anomaly   AnomalyConfig   `koanf:"anomaly"`
}

type ServerConfig struct {
	Addr            string          `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration   `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration   `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout" validate:"gt=0"`
	MaxUploadBytes  int64           `koanf:"max_upload_bytes" validate:"gt=0"`
	CORSOrigins     []string        `koanf:"cors_origins"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int     `koanf:"burst" validate:"gt=0"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn" validate:"required"`
}

type OllamaConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required,url"`
	Model          string        `koanf:"model" validate:"required"`
	EmbeddingModel string        `koanf:"embedding_model" validate:"required"`
	Timeout        time.Duration `koanf:"timeout" validate:"gt=0"`
}

type RetrievalConfig struct {
	Embedder         string `koanf:"embedder" validate:"oneof=ollama hashing"`
	Dimensions       int    `koanf:"dimensions" validate:"gt=0"`
	IndexConcurrency int    `koanf:"index_concurrency" validate:"gt=0"`
}

type PipelineConfig struct {
	TopK            int           `koanf:"top_k" validate:"gt=0"`
	MaxAnswerLength int           `koanf:"max_answer_length" validate:"gt=0"`
	CallTimeout     time.Duration `koanf:"call_timeout" validate:"gt=0"`
}

type AnomalyConfig struct {
	SystemSchemaAccesses int      `koanf:"system_schema_accesses" validate:"gte=0"`
	DestructiveActions   int      `koanf:"destructive_actions" validate:"gte=0"`
	SessionsPerUser      int      `koanf:"sessions_per_user" validate:"gte=0"`
	TopN                 int      `koanf:"top_n" validate:"gt=0"`
	SystemSchema         string   `koanf:"system_schema" validate:"required"`
	DestructiveNames     []string `koanf:"destructive_names" validate:"min=1,dive,required"`
}

// Thresholds converts the anomaly section to analysis thresholds
func (a AnomalyConfig) Thresholds() analytics.Thresholds {
	return analytics.Thresholds{
		SystemSchemaAccesses: a.SystemSchemaAccesses,
		DestructiveActions:   a.DestructiveActions,
		SessionsPerUser:      a.SessionsPerUser,
		TopN:                 a.TopN,
		SystemSchema:         a.SystemSchema,
		DestructiveNames:     append([]string(nil), a.DestructiveNames...),
	}
}

// Default returns the built-in configuration
func Default() *Config {
	th := analytics.DefaultThresholds()

	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  32 << 20,
			CORSOrigins:     []string{"*"},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 20,
				Burst:             40,
			},
		},
		Database: DatabaseConfig{
			DSN: DefaultDSN,
		},
		Ollama: OllamaConfig{
			BaseURL:        "http://127.0.0.1:11434",
			Model:          "llama3.2",
			EmbeddingModel: "nomic-embed-text",
			Timeout:        60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			Embedder:         EmbedderOllama,
			Dimensions:       256,
			IndexConcurrency: 4,
		},
		Pipeline: PipelineConfig{
			TopK:            5,
			MaxAnswerLength: 500,
			CallTimeout:     60 * time.Second,
		},
		Anomaly: AnomalyConfig{
			SystemSchemaAccesses: th.SystemSchemaAccesses,
			DestructiveActions:   th.DestructiveActions,
			SessionsPerUser:      th.SessionsPerUser,
			TopN:                 th.TopN,
			SystemSchema:         th.SystemSchema,
			DestructiveNames:     th.DestructiveNames,
		},
	}
}

// Load builds the configuration from, in increasing precedence, the built-in
// defaults, the YAML file at path (skipped when path is empty) and AUDIT_*
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps AUDIT_SERVER__RATE_LIMIT__BURST to server.rate_limit.burst
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
