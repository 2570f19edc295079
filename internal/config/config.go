// Package config loads mnemex's process configuration from environment
// variables with an MNEMEX_ prefix, with workspace-level user settings
// persisted to the settings table and database values taking precedence
// over env vars on read. Grounded on the teacher's own config package
// (same env-var-first, DB-override-second shape); renamed from its
// single data-directory/feature-flag model to the spec's single
// DSN-addressed store plus the lifecycle engine's and extractor's own
// tunables.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration settings for an mnemex process.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	LLM        LLMConfig
	Security   SecurityConfig
	Engine     EngineConfig
	Extraction ExtractionConfig
	User       UserConfig
}

// ServerConfig contains HTTP server configuration (cmd/mnemex-api).
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig selects and addresses the relational backend and the
// embedding dimension its vector index must support.
type DatabaseConfig struct {
	Engine    string // "sqlite" or "postgres"
	DSN       string
	Dimension int
}

// LLMConfig contains LLM and embedding provider configuration.
type LLMConfig struct {
	Provider             string // ollama, openai, anthropic
	OllamaURL            string
	OllamaModel          string
	OllamaEmbeddingModel string
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIEmbeddingModel string
	AnthropicAPIKey      string
	AnthropicModel       string
}

// SecurityConfig contains the bearer token an external auth middleware
// checks ahead of cmd/mnemex-api (§6: auth is an external collaborator;
// this is only the shared-secret hook).
type SecurityConfig struct {
	SecurityMode string // development, production
	APIToken     string
}

// EngineConfig carries the lifecycle manager's tunables (§4.9).
type EngineConfig struct {
	EvaluateIntervalSeconds int
	CleanupIntervalSeconds  int
	EventRetentionDays      int
	ArchiveRetentionDays    int
	EvaluateBatchSize       int
	DecayHalfLifeHours      float64
}

// ExtractionConfig carries the Conversation Chunker / Memory Extractor /
// MAKER layer's defaults (§4.15-4.17).
type ExtractionConfig struct {
	MaxTokensPerChunk int
	Strategy          string
	OverlapPercentage float64
	FailureMode       string
	VoterCount        int
	MinConfidence     float64
	ProfilesPath      string // YAML file of named types.ExtractionProfile bundles
}

// UserConfig contains user-specific settings that persist across restarts
// in the settings table.
type UserConfig struct {
	UserName string
}

// LoadConfig loads configuration from environment variables with
// sensible defaults. All environment variables use the MNEMEX_ prefix.
func LoadConfig() (*Config, error) {
	return buildBaseConfig(), nil
}

// LoadConfigFromDB loads configuration from both environment variables
// and the database; the database value takes precedence for user
// settings. Falls back to the environment variable when no DB entry
// exists. Returns an error if db is nil.
func LoadConfigFromDB(db *sql.DB) (*Config, error) {
	if db == nil {
		return nil, errors.New("config: database connection is required")
	}

	cfg := buildBaseConfig()

	userName, err := getSetting(db, "user_name")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config: failed to load user_name from database: %w", err)
	}
	if userName != "" {
		cfg.User.UserName = userName
	}

	return cfg, nil
}

// SaveConfig persists user configuration settings to the settings table,
// upserting so settings survive application restarts. Returns an error
// if db is nil.
func (c *Config) SaveConfig(db *sql.DB) error {
	if db == nil {
		return errors.New("config: database connection is required")
	}
	if err := setSetting(db, "user_name", c.User.UserName); err != nil {
		return fmt.Errorf("config: failed to save user_name: %w", err)
	}
	return nil
}

func getSetting(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

func setSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("MNEMEX_PORT", 6363),
			Host: getEnv("MNEMEX_HOST", "127.0.0.1"),
		},
		Database: DatabaseConfig{
			Engine:    getEnv("MNEMEX_DB_ENGINE", "sqlite"),
			DSN:       getEnv("MNEMEX_DB_DSN", "mnemex.db"),
			Dimension: getEnvInt("MNEMEX_EMBEDDING_DIM", 1536),
		},
		LLM: LLMConfig{
			Provider:             getEnv("MNEMEX_LLM_PROVIDER", "ollama"),
			OllamaURL:            getEnv("MNEMEX_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("MNEMEX_OLLAMA_MODEL", "qwen2.5:7b"),
			OllamaEmbeddingModel: getEnv("MNEMEX_EMBEDDING_MODEL", "nomic-embed-text"),
			OpenAIAPIKey:         getEnv("MNEMEX_OPENAI_API_KEY", ""),
			OpenAIModel:          getEnv("MNEMEX_OPENAI_MODEL", "gpt-4o"),
			OpenAIEmbeddingModel: getEnv("MNEMEX_OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			AnthropicAPIKey:      getEnv("MNEMEX_ANTHROPIC_API_KEY", ""),
			AnthropicModel:       getEnv("MNEMEX_ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("MNEMEX_SECURITY_MODE", "development"),
			APIToken:     getEnv("MNEMEX_API_TOKEN", ""),
		},
		Engine: EngineConfig{
			EvaluateIntervalSeconds: getEnvInt("MNEMEX_EVALUATE_INTERVAL_SECONDS", 300),
			CleanupIntervalSeconds:  getEnvInt("MNEMEX_CLEANUP_INTERVAL_SECONDS", 3600),
			EventRetentionDays:      getEnvInt("MNEMEX_EVENT_RETENTION_DAYS", 90),
			ArchiveRetentionDays:    getEnvInt("MNEMEX_ARCHIVE_RETENTION_DAYS", 30),
			EvaluateBatchSize:       getEnvInt("MNEMEX_EVALUATE_BATCH_SIZE", 1000),
			DecayHalfLifeHours:      getEnvFloat("MNEMEX_DECAY_HALF_LIFE_HOURS", 168.0),
		},
		Extraction: ExtractionConfig{
			MaxTokensPerChunk: getEnvInt("MNEMEX_MAX_TOKENS_PER_CHUNK", 2000),
			Strategy:          getEnv("MNEMEX_CHUNK_STRATEGY", "sliding_window"),
			OverlapPercentage: getEnvFloat("MNEMEX_CHUNK_OVERLAP_PERCENTAGE", 0.15),
			FailureMode:       getEnv("MNEMEX_EXTRACTION_FAILURE_MODE", "continue-on-error"),
			VoterCount:        getEnvInt("MNEMEX_MAKER_VOTER_COUNT", 3),
			MinConfidence:     getEnvFloat("MNEMEX_EXTRACTION_MIN_CONFIDENCE", 0.5),
			ProfilesPath:      getEnv("MNEMEX_EXTRACTION_PROFILES_PATH", ""),
		},
		User: UserConfig{
			UserName: getEnv("MNEMEX_USER_NAME", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
