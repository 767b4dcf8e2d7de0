// Package config reads the process-wide settings cmd/ragflowd needs at
// startup. It is deliberately plain os.Getenv rather than
// github.com/spf13/viper: the surface is a dozen flat scalars read exactly
// once before anything else runs, and viper's file/remote-provider/live-
// reload machinery has no caller here (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is every environment variable cmd/ragflowd reads at startup
// (spec.md §6: "vector store DSN, full-text store host, default embedding
// model, default completion model, memory store DSN, context window
// limits, quota defaults").
type Config struct {
	ListenAddr string

	VectorStoreDSN   string
	FullTextHost     string
	MemoryStoreDSN   string

	EmbeddingProvider  string
	EmbeddingModel     string
	CompletionProvider string
	CompletionModel    string

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	ContextWindow int
	DailyQuota    int

	EnableSensitiveFilter bool
}

// Load reads Config from the process environment. It returns an error on
// any malformed (non-configuration-missing) value, which the caller should
// treat as a startup configuration failure (spec.md §6 exit code 1).
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: getEnv("RAGFLOW_LISTEN_ADDR", ":8080"),

		VectorStoreDSN: os.Getenv("RAGFLOW_VECTOR_STORE_DSN"),
		FullTextHost:   os.Getenv("RAGFLOW_FULLTEXT_HOST"),
		MemoryStoreDSN: os.Getenv("RAGFLOW_MEMORY_STORE_DSN"),

		EmbeddingProvider:  getEnv("RAGFLOW_EMBEDDING_PROVIDER", "mock"),
		EmbeddingModel:     getEnv("RAGFLOW_EMBEDDING_MODEL", "text-embedding-3-small"),
		CompletionProvider: getEnv("RAGFLOW_COMPLETION_PROVIDER", "mock"),
		CompletionModel:    getEnv("RAGFLOW_COMPLETION_MODEL", "gpt-4o-mini"),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
	}

	contextWindow, err := getEnvInt("RAGFLOW_CONTEXT_WINDOW", 8000)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextWindow = contextWindow

	dailyQuota, err := getEnvInt("RAGFLOW_DAILY_QUOTA", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.DailyQuota = dailyQuota

	cfg.EnableSensitiveFilter = getEnv("RAGFLOW_ENABLE_SENSITIVE_FILTER", "true") == "true"

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer: %w", key, v, err)
	}
	return n, nil
}
