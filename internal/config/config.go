// Package config provides configuration management for Podium.
// It loads settings from environment variables with the PODIUM_ prefix
// and provides sensible defaults for all configuration options.
//
// Matcher data (affiliation stopwords and abbreviation synonyms) is data,
// not algorithm: it lives in an optional YAML file loaded by LoadMatcherConfig
// so institution vocabularies can be tuned per deployment without a rebuild.
package config

import (
	"os"
	"strconv"
)

// Config holds all configuration settings for the Podium application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Security SecurityConfig
	Resolver ResolverConfig
	Ranking  RankingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7070)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine: sqlite, postgres, memory (default: sqlite)
	DataPath      string // Path to data directory for sqlite (default: ./data)
	PostgresDSN   string // Postgres connection string (used when engine is postgres)
}

// LLMConfig contains the extraction/parsing LLM client configuration.
type LLMConfig struct {
	OllamaURL      string // Ollama API URL (default: http://localhost:11434)
	OllamaModel    string // Model for extraction and query parsing (default: qwen2.5:7b)
	EmbeddingModel string // Model for embeddings (default: nomic-embed-text)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// ResolverConfig contains identity-resolution tunables.
type ResolverConfig struct {
	// MatcherConfigPath points to an optional YAML file with stopwords and
	// synonyms. Empty means built-in defaults.
	MatcherConfigPath string

	// AttributeConfidenceThreshold is the minimum extraction confidence an
	// attribute needs to be persisted (default: 0.5).
	AttributeConfidenceThreshold float64
}

// RankingConfig contains ranking tunables.
type RankingConfig struct {
	// ShortlistSize is how many candidates the vector retrieval step hands
	// to the ranking engine (default: 50).
	ShortlistSize int
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the PODIUM_ prefix.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("PODIUM_PORT", 7070),
			Host: getEnv("PODIUM_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("PODIUM_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("PODIUM_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("PODIUM_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			OllamaURL:      getEnv("PODIUM_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:    getEnv("PODIUM_OLLAMA_MODEL", "qwen2.5:7b"),
			EmbeddingModel: getEnv("PODIUM_EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("PODIUM_SECURITY_MODE", "development"),
			APIToken:     getEnv("PODIUM_API_TOKEN", ""),
		},
		Resolver: ResolverConfig{
			MatcherConfigPath:            getEnv("PODIUM_MATCHER_CONFIG", ""),
			AttributeConfidenceThreshold: getEnvFloat("PODIUM_ATTRIBUTE_CONFIDENCE_THRESHOLD", 0.5),
		},
		Ranking: RankingConfig{
			ShortlistSize: getEnvInt("PODIUM_SHORTLIST_SIZE", 50),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
