// Package config loads configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderGoogleAI Provider = "googleai"
	ProviderOpenAI   Provider = "openai"
	ProviderOllama   Provider = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// Generation provider
	LLMProvider  Provider
	LLMModel     string
	GeminiAPIKey string
	OpenAIAPIKey string
	OllamaHost   string
	Temperature  float64

	// Embedding provider
	EmbedProvider  Provider
	EmbedModel     string
	EmbedDimension int

	// Knowledge index
	StoreDir string
	// SearchLimit is the number of candidate chunks fetched per query.
	SearchLimit int
	// RelevanceThreshold gates knowledge usage: a chunk is relevant when its
	// cosine distance to the query is strictly below this value. Lower
	// distance means more similar; if the embedding backend changes its
	// distance semantics, this value must be re-tuned.
	RelevanceThreshold float64

	// Conversation memory
	DataDir            string
	MaxContextMessages int
	MaxTurns           int

	// HTTP server
	Port string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		LLMProvider:  Provider(getEnv("OTTO_LLM_PROVIDER", "googleai")),
		LLMModel:     getEnv("OTTO_LLM_MODEL", "gemini-2.5-flash"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),
		Temperature:  getEnvFloat("OTTO_TEMPERATURE", 0.7),

		EmbedProvider:  Provider(getEnv("OTTO_EMBED_PROVIDER", "googleai")),
		EmbedModel:     getEnv("OTTO_EMBED_MODEL", "text-embedding-004"),
		EmbedDimension: getEnvInt("OTTO_EMBED_DIMENSION", 768),

		StoreDir:           getEnv("OTTO_STORE_DIR", "./vector_stores"),
		SearchLimit:        getEnvInt("OTTO_SEARCH_LIMIT", 5),
		RelevanceThreshold: getEnvFloat("OTTO_RELEVANCE_THRESHOLD", 0.7),

		DataDir:            getEnv("OTTO_DATA_DIR", "./data"),
		MaxContextMessages: getEnvInt("OTTO_MAX_CONTEXT_MESSAGES", 10),
		MaxTurns:           getEnvInt("OTTO_MAX_TURNS", 500),

		Port: getEnv("OTTO_PORT", "8080"),

		LogFile:  getEnv("OTTO_LOG_FILE", "/tmp/otto.log"),
		LogLevel: parseLogLevel(getEnv("OTTO_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
