package config

import (
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	// RedisURL is host:port of the progress store.
	RedisURL string

	// LLMProvider selects the dialogue backend: "gemini" or "openai".
	// Keys set in the environment override keys stored at config:api_keys.
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", ""),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
