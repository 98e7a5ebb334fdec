package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file structure. Pointer
// fields distinguish "unset" from zero.
type FileConfig struct {
	ServerPort        string `toml:"server_port"`
	OpenRouterAPIKey  string `toml:"openrouter_api_key"`
	OpenRouterBaseURL string `toml:"openrouter_base_url"`
	MediaAPIKey       string `toml:"media_api_key"`
	MediaBaseURL      string `toml:"media_base_url"`
	AdminJWTSecret    string `toml:"admin_jwt_secret"`

	DefaultBalance *int64   `toml:"default_balance"`
	InputRate      *float64 `toml:"input_rate"`
	OutputRate     *float64 `toml:"output_rate"`
	ImageRate      *int64   `toml:"image_rate"`
	PreflightFloor *int64   `toml:"preflight_floor"`

	MaxMessages     *int `toml:"max_messages"`
	MaxMessageChars *int `toml:"max_message_chars"`

	Models []ModelEntry `toml:"models"`
}

// ModelEntry is one allowed model in the config file.
type ModelEntry struct {
	ID         string   `toml:"id"`
	Name       string   `toml:"name"`
	Tier       string   `toml:"tier"` // free, paid, legacy
	Multiplier float64  `toml:"multiplier"`
	Provider   string   `toml:"provider"`
	Fallbacks  []string `toml:"fallbacks"`
}

// LoadFile loads configuration from the TOML file. Returns an empty
// FileConfig if the file doesn't exist.
func LoadFile() (*FileConfig, error) {
	cfg := &FileConfig{}

	path := ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultModels is the compiled-in catalog used when the config file lists
// no models.
func DefaultModels() []ModelEntry {
	return []ModelEntry{
		{
			ID: "openai/gpt-4o", Name: "GPT-4o", Tier: "paid", Multiplier: 2.5, Provider: "openrouter",
			Fallbacks: []string{"anthropic/claude-3.5-sonnet", "google/gemini-flash-1.5"},
		},
		{
			ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Tier: "paid", Multiplier: 3, Provider: "openrouter",
			Fallbacks: []string{"openai/gpt-4o", "google/gemini-flash-1.5"},
		},
		{
			ID: "google/gemini-flash-1.5", Name: "Gemini Flash 1.5", Tier: "paid", Multiplier: 0.5, Provider: "openrouter",
			Fallbacks: []string{"meta-llama/llama-3.1-8b-instruct:free"},
		},
		{
			ID: "meta-llama/llama-3.1-8b-instruct:free", Name: "Llama 3.1 8B", Tier: "free", Multiplier: 0, Provider: "openrouter",
		},
		{
			ID: "mistralai/mistral-7b-instruct", Name: "Mistral 7B", Tier: "legacy", Multiplier: 0.25, Provider: "openrouter",
			Fallbacks: []string{"meta-llama/llama-3.1-8b-instruct:free"},
		},
		{
			ID: "black-forest-labs/flux-schnell", Name: "FLUX Schnell", Tier: "paid", Multiplier: 1, Provider: "media",
		},
	}
}

// EnsureConfigFile creates a commented example config if none exists.
func EnsureConfigFile() error {
	path := ConfigPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := EnsureDataDir(); err != nil {
		return err
	}

	example := `# chatgate configuration
# server_port = ":8080"

# Upstream credentials (env vars OPENROUTER_API_KEY etc. take precedence)
# openrouter_api_key = "sk-or-..."
# media_api_key = "..."
# admin_jwt_secret = "change-me"

# Credit pricing (credits per million tokens)
# input_rate = 30.0
# output_rate = 60.0
# image_rate = 25
# default_balance = 5000
# preflight_floor = 0

# Request limits
# max_messages = 100
# max_message_chars = 32000

# Model catalog. Omit to use the built-in defaults.
# [[models]]
# id = "openai/gpt-4o"
# name = "GPT-4o"
# tier = "paid"
# multiplier = 2.5
# provider = "openrouter"
# fallbacks = ["anthropic/claude-3.5-sonnet", "google/gemini-flash-1.5"]
`

	return os.WriteFile(path, []byte(example), 0644)
}
