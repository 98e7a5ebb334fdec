// Package config loads application configuration.
// Priority: env vars → config.toml → defaults.
package config

import (
	"os"
	"strconv"
)

// Config holds the resolved application configuration.
type Config struct {
	// ServerPort is the bind address (e.g. ":8080").
	ServerPort string

	// OpenRouterAPIKey authenticates against the LLM aggregator.
	OpenRouterAPIKey string
	// OpenRouterBaseURL overrides the aggregator endpoint (tests, proxies).
	OpenRouterBaseURL string

	// MediaAPIKey and MediaBaseURL configure the image generation provider.
	MediaAPIKey  string
	MediaBaseURL string

	// AdminJWTSecret signs admin session tokens.
	AdminJWTSecret string

	// DefaultBalance is granted to accounts created on first access.
	DefaultBalance int64

	// InputRate and OutputRate price tokens in credits per million.
	InputRate  float64
	OutputRate float64

	// ImageRate is the flat credit cost of one generated image before the
	// model multiplier is applied.
	ImageRate int64

	// PreflightFloor is the balance at or below which metered requests are
	// rejected before any upstream call. Zero is the current policy; the
	// old fixed minimum-token threshold survives as a configurable value.
	PreflightFloor int64

	// MaxMessages caps the history length of one request.
	MaxMessages int
	// MaxMessageChars caps each message's text; user-authored overflow is
	// truncated, assistant-authored text passes through.
	MaxMessageChars int

	// Models is the model catalog with fallback chains.
	Models []ModelEntry
}

// Load reads configuration from file and environment variables.
func Load() *Config {
	fileConfig, _ := LoadFile() // ignore error, fall back to defaults

	cfg := &Config{
		ServerPort:        getEnvOr("SERVER_PORT", fileConfig.ServerPort, ":8080"),
		OpenRouterAPIKey:  getEnvOr("OPENROUTER_API_KEY", fileConfig.OpenRouterAPIKey, ""),
		OpenRouterBaseURL: getEnvOr("OPENROUTER_BASE_URL", fileConfig.OpenRouterBaseURL, ""),
		MediaAPIKey:       getEnvOr("MEDIA_API_KEY", fileConfig.MediaAPIKey, ""),
		MediaBaseURL:      getEnvOr("MEDIA_BASE_URL", fileConfig.MediaBaseURL, ""),
		AdminJWTSecret:    getEnvOr("ADMIN_JWT_SECRET", fileConfig.AdminJWTSecret, ""),
		DefaultBalance:    getEnvInt64Or("DEFAULT_BALANCE", fileConfig.DefaultBalance, 5000),
		InputRate:         getFloatOr(fileConfig.InputRate, 30),
		OutputRate:        getFloatOr(fileConfig.OutputRate, 60),
		ImageRate:         getEnvInt64Or("IMAGE_RATE", fileConfig.ImageRate, 25),
		PreflightFloor:    getEnvInt64Or("PREFLIGHT_FLOOR", fileConfig.PreflightFloor, 0),
		MaxMessages:       getIntOr(fileConfig.MaxMessages, 100),
		MaxMessageChars:   getIntOr(fileConfig.MaxMessageChars, 32_000),
		Models:            fileConfig.Models,
	}

	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	return cfg
}

func getEnvOr(key, fileValue, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

func getEnvInt64Or(key string, fileValue *int64, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func getFloatOr(fileValue *float64, defaultValue float64) float64 {
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func getIntOr(fileValue *int, defaultValue int) int {
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}
