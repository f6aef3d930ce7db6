// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.notechat/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: chat model, temperature, embedder model and dimension
//   - Index: index name, HNSW tuning parameters (see validation.go)
//   - Notion: integration token and source database
//   - Storage: PostgreSQL connection (see storage.go)
//
// Security: sensitive values (tokens, passwords) are masked in MarshalJSON
// and String. Validation is fail-fast: a Config that loads is a Config the
// process can run with.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration problems, checked with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingNotionToken indicates the Notion integration token is missing.
	ErrMissingNotionToken = errors.New("missing Notion token")

	// ErrMissingNotionDatabase indicates the Notion source database is not configured.
	ErrMissingNotionDatabase = errors.New("missing Notion database ID")

	// ErrInvalidModelName indicates the chat model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedding dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidRetry indicates the embedding retry settings are out of range.
	ErrInvalidRetry = errors.New("invalid retry settings")

	// ErrInvalidIndexName indicates the index name is empty or malformed.
	ErrInvalidIndexName = errors.New("invalid index name")

	// ErrInvalidHNSW indicates the HNSW tuning parameters are out of range.
	ErrInvalidHNSW = errors.New("invalid HNSW parameters")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultChatModel is the provider-qualified chat model.
	DefaultChatModel = "googleai/gemini-2.5-flash"

	// DefaultEmbedderModel is the Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default; the index
	// schema dimension must match EmbedderDimension exactly.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the default output of DefaultEmbedderModel.
	DefaultEmbedderDimension = 3072

	// DefaultIndexName is the name of the search index (and its table).
	DefaultIndexName = "pages"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName         string  `mapstructure:"model_name" json:"model_name"`
	Temperature       float32 `mapstructure:"temperature" json:"temperature"`
	EmbedderModel     string  `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int     `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Retrieval configuration
	TopK int `mapstructure:"top_k" json:"top_k"`

	// Embedding client resilience. Attempts bounds the total tries per text;
	// BackoffMs is the fixed delay between tries; PerMinute paces successive
	// calls during bulk ingestion (token bucket, shared across documents).
	EmbedAttempts  int `mapstructure:"embed_attempts" json:"embed_attempts"`
	EmbedBackoffMs int `mapstructure:"embed_backoff_ms" json:"embed_backoff_ms"`
	EmbedPerMinute int `mapstructure:"embed_per_minute" json:"embed_per_minute"`

	// Index configuration
	IndexName          string `mapstructure:"index_name" json:"index_name"`
	HNSWM              int    `mapstructure:"hnsw_m" json:"hnsw_m"`
	HNSWEfConstruction int    `mapstructure:"hnsw_ef_construction" json:"hnsw_ef_construction"`
	HNSWEfSearch       int    `mapstructure:"hnsw_ef_search" json:"hnsw_ef_search"`

	// Notion source configuration
	NotionToken      string `mapstructure:"notion_token" json:"notion_token"` // SENSITIVE: masked in MarshalJSON
	NotionDatabaseID string `mapstructure:"notion_database_id" json:"notion_database_id"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".notechat")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Fail fast: a Config that loads is a Config the process can run with
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("model_name", DefaultChatModel)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Retrieval defaults
	v.SetDefault("top_k", 3)

	// Embedding client defaults
	v.SetDefault("embed_attempts", 3)
	v.SetDefault("embed_backoff_ms", 1000)
	v.SetDefault("embed_per_minute", 10)

	// Index defaults (HNSW tuning matches the embedding workload)
	v.SetDefault("index_name", DefaultIndexName)
	v.SetDefault("hnsw_m", 4)
	v.SetDefault("hnsw_ef_construction", 400)
	v.SetDefault("hnsw_ef_search", 500)

	// PostgreSQL defaults for local development
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "notechat")
	v.SetDefault("postgres_password", "notechat_dev_password")
	v.SetDefault("postgres_db_name", "notechat")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variables explicitly.
//
// Secrets come only from the environment:
//   - GEMINI_API_KEY: read directly by the Genkit googlegenai plugin,
//     validated for presence in cfg.Validate()
//   - NOTION_API_KEY: Notion integration token
//   - DATABASE_URL: parsed separately in parseDatabaseURL()
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("notion_token", "NOTION_API_KEY")
	mustBind("notion_database_id", "NOTION_DATABASE_ID")

	mustBind("model_name", "NOTECHAT_MODEL_NAME")
	mustBind("embedder_model", "NOTECHAT_EMBEDDER_MODEL")
	mustBind("index_name", "NOTECHAT_INDEX_NAME")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - NotionToken
//   - PostgresPassword
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.NotionToken = maskSecret(a.NotionToken)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
