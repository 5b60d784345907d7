package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// clearEnv blanks every variable Load reads so tests see defaults regardless
// of the surrounding environment. Empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"OTTO_LLM_PROVIDER", "OTTO_LLM_MODEL", "GEMINI_API_KEY", "OPENAI_API_KEY",
		"OLLAMA_HOST", "OTTO_TEMPERATURE", "OTTO_EMBED_PROVIDER", "OTTO_EMBED_MODEL",
		"OTTO_EMBED_DIMENSION", "OTTO_STORE_DIR", "OTTO_SEARCH_LIMIT",
		"OTTO_RELEVANCE_THRESHOLD", "OTTO_DATA_DIR", "OTTO_MAX_CONTEXT_MESSAGES",
		"OTTO_MAX_TURNS", "OTTO_PORT", "OTTO_LOG_FILE", "OTTO_LOG_LEVEL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.LLMProvider != ProviderGoogleAI {
		t.Errorf("LLMProvider = %q, want googleai", cfg.LLMProvider)
	}
	if cfg.RelevanceThreshold != 0.7 {
		t.Errorf("RelevanceThreshold = %v, want 0.7", cfg.RelevanceThreshold)
	}
	if cfg.MaxContextMessages != 10 {
		t.Errorf("MaxContextMessages = %d, want 10", cfg.MaxContextMessages)
	}
	if cfg.SearchLimit != 5 {
		t.Errorf("SearchLimit = %d, want 5", cfg.SearchLimit)
	}
	if cfg.MaxTurns != 500 {
		t.Errorf("MaxTurns = %d, want 500", cfg.MaxTurns)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTTO_LLM_PROVIDER", "ollama")
	t.Setenv("OTTO_RELEVANCE_THRESHOLD", "0.5")
	t.Setenv("OTTO_MAX_CONTEXT_MESSAGES", "4")
	t.Setenv("OTTO_PORT", "9090")

	cfg := Load()
	if cfg.LLMProvider != ProviderOllama {
		t.Errorf("LLMProvider = %q, want ollama", cfg.LLMProvider)
	}
	if cfg.RelevanceThreshold != 0.5 {
		t.Errorf("RelevanceThreshold = %v, want 0.5", cfg.RelevanceThreshold)
	}
	if cfg.MaxContextMessages != 4 {
		t.Errorf("MaxContextMessages = %d, want 4", cfg.MaxContextMessages)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
}

func TestLoadMalformedNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTTO_SEARCH_LIMIT", "lots")
	t.Setenv("OTTO_RELEVANCE_THRESHOLD", "very")

	cfg := Load()
	if cfg.SearchLimit != 5 {
		t.Errorf("SearchLimit = %d, want default 5", cfg.SearchLimit)
	}
	if cfg.RelevanceThreshold != 0.7 {
		t.Errorf("RelevanceThreshold = %v, want default 0.7", cfg.RelevanceThreshold)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("collection built", "collection", "main", "chunks", 42)

	if stderr.Len() == 0 {
		t.Error("nothing written to the text output")
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v\n%s", err, file.String())
	}
	if entry["msg"] != "collection built" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["collection"] != "main" {
		t.Errorf("collection = %v", entry["collection"])
	}
}

func TestSetupLoggerWithWritersRespectsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Info("should be dropped")
	if file.Len() != 0 {
		t.Errorf("info entry written despite warn level: %s", file.String())
	}

	logger.Warn("should pass")
	if file.Len() == 0 {
		t.Error("warn entry dropped")
	}
}
