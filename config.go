package ghostline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	defaults "github.com/Paranoid-AF/ghostline/default"
	"github.com/Paranoid-AF/ghostline/models"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
// Keys use "_" in place of ".", e.g. GHOSTLINE_GENERATION_API_KEY.
const EnvPrefix = "GHOSTLINE"

// API types understood by the generator.
const (
	APITypeCompletions     = "completions"
	APITypeChatCompletions = "chat_completions"
)

// Config represents the user's ghostline configuration.
type Config struct {
	Version    int              `json:"version" mapstructure:"version"`
	Plan       string           `json:"plan" mapstructure:"plan"`
	Generation GenerationConfig `json:"generation" mapstructure:"generation"`
	Embedding  EmbeddingConfig  `json:"embedding" mapstructure:"embedding"`
	Telemetry  TelemetryConfig  `json:"telemetry" mapstructure:"telemetry"`
}

// GenerationConfig holds settings for the generation API.
type GenerationConfig struct {
	BaseURL     string   `json:"base_url" mapstructure:"base_url"`
	APIKey      string   `json:"api_key" mapstructure:"api_key"`
	APIType     string   `json:"api_type" mapstructure:"api_type"`
	Model       string   `json:"model" mapstructure:"model"`
	MaxTokens   int      `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Temperature float64  `json:"temperature,omitempty" mapstructure:"temperature"`
	Stop        []string `json:"stop,omitempty" mapstructure:"stop"`
	// MaxRetries is the number of extra attempts made when a request fails
	// before any text was streamed.
	MaxRetries     int `json:"max_retries" mapstructure:"max_retries"`
	PrefixMaxBytes int `json:"prefix_max_bytes,omitempty" mapstructure:"prefix_max_bytes"`
	SuffixMaxBytes int `json:"suffix_max_bytes,omitempty" mapstructure:"suffix_max_bytes"`
}

// EmbeddingConfig holds settings for the embedding API.
type EmbeddingConfig struct {
	BaseURL     string `json:"base_url" mapstructure:"base_url"`
	APIKey      string `json:"api_key" mapstructure:"api_key"`
	Model       string `json:"model" mapstructure:"model"`
	Dimensions  int    `json:"dimensions,omitempty" mapstructure:"dimensions"`
	MaxSnippets int    `json:"max_snippets,omitempty" mapstructure:"max_snippets"`
}

// TelemetryConfig holds telemetry settings.
type TelemetryConfig struct {
	OpenRouter *bool `json:"openrouter,omitempty" mapstructure:"openrouter"`
}

// ConfigDir returns the config directory path.
// Resolution order: $GHOSTLINE_CONFIG_DIR > $XDG_CONFIG_HOME/ghostline > ~/.config/ghostline
func ConfigDir() string {
	if dir := os.Getenv("GHOSTLINE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "ghostline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "ghostline-config")
	}
	return filepath.Join(home, ".config", "ghostline")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// PromptPath returns the custom prompt template path.
func PromptPath() string {
	return filepath.Join(ConfigDir(), "prompt.md")
}

// IndexCachePath returns where the accepted-snippet index is persisted.
// Resolution order: $XDG_CACHE_HOME/ghostline > ~/.cache/ghostline (via os.UserCacheDir)
func IndexCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ghostline", "snippets.json")
}

// SocketPath returns the daemon socket path.
// Resolution order: $GHOSTLINE_SOCKET > $XDG_RUNTIME_DIR/ghostline.sock > /tmp/ghostline-<uid>.sock
func SocketPath() string {
	if path := os.Getenv("GHOSTLINE_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/ghostline.sock"
	}
	return fmt.Sprintf("/tmp/ghostline-%d.sock", os.Getuid())
}

// DefaultConfig returns the default configuration from the embedded default_config.json.
func DefaultConfig() *Config {
	var cfg Config
	if err := json.Unmarshal(defaults.DefaultConfigJSON, &cfg); err != nil {
		panic("ghostline: invalid embedded default_config.json: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads the config file and environment overrides on top of the
// embedded defaults.
//
// Precedence (highest to lowest):
//  1. Environment variables (GHOSTLINE_GENERATION_MODEL, ...)
//  2. config.json values
//  3. Embedded defaults
func LoadConfig() (*Config, error) {
	v, err := newViper(ConfigPath())
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigType("json")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers every key of the embedded defaults so that
// AutomaticEnv can resolve it.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("plan", d.Plan)

	v.SetDefault("generation.base_url", d.Generation.BaseURL)
	v.SetDefault("generation.api_key", d.Generation.APIKey)
	v.SetDefault("generation.api_type", d.Generation.APIType)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.stop", d.Generation.Stop)
	v.SetDefault("generation.max_retries", d.Generation.MaxRetries)
	v.SetDefault("generation.prefix_max_bytes", d.Generation.PrefixMaxBytes)
	v.SetDefault("generation.suffix_max_bytes", d.Generation.SuffixMaxBytes)

	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.max_snippets", d.Embedding.MaxSnippets)

	openRouter := true
	if d.Telemetry.OpenRouter != nil {
		openRouter = *d.Telemetry.OpenRouter
	}
	v.SetDefault("telemetry.openrouter", openRouter)
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if cfg.Generation.APIKey == "" {
		warnings = append(warnings, "generation API key is not configured; set GHOSTLINE_GENERATION_API_KEY")
	}
	switch cfg.Generation.APIType {
	case APITypeCompletions, APITypeChatCompletions:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown api_type %q; expected %q or %q",
			cfg.Generation.APIType, APITypeCompletions, APITypeChatCompletions))
	}
	plan, err := models.ParsePlan(cfg.Plan)
	if err != nil {
		warnings = append(warnings, err.Error())
	} else if !models.Allowed(plan, cfg.Generation.Model) {
		warnings = append(warnings, fmt.Sprintf("model %q requires a higher plan than %s", cfg.Generation.Model, plan))
	}
	return warnings
}

// EmbeddingEnabled returns true when both base_url and api_key are configured for embedding.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Embedding.BaseURL != "" && cfg.Embedding.APIKey != ""
}

// OpenRouterTelemetryEnabled returns whether OpenRouter attribution headers should be sent.
func OpenRouterTelemetryEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Telemetry.OpenRouter == nil {
		return true // default true
	}
	return *cfg.Telemetry.OpenRouter
}
