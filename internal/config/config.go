// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.assistant/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Models: the selectable model catalog with role gates
//   - Vendors: API keys for the model vendors
//   - Storage: PostgreSQL connection (see storage.go)
//   - MCP: tool server registry with allow/deny filtering
//   - Server: HTTP listen address, CORS, rate limiting
//
// Security: sensitive fields (passwords, API keys) are masked in
// MarshalJSON. Validation runs at load time and fails fast with sentinel
// errors checkable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/koopa0/assistant/internal/mcp"
	"github.com/koopa0/assistant/internal/model"
)

// MCPConfig is the tool server registry section.
type MCPConfig struct {
	// Servers is the full set of configured servers; Load filters it.
	Servers []mcp.Server `mapstructure:"servers" json:"servers"`

	// Allowed, when non-empty, whitelists server names.
	Allowed []string `mapstructure:"allowed" json:"allowed"`

	// Excluded blacklists server names. Wins over Allowed.
	Excluded []string `mapstructure:"excluded" json:"excluded"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Model catalog. Empty resolves to a built-in default catalog.
	Models []model.AIModel `mapstructure:"models" json:"models"`

	// Generation settings
	MaxTokens    int    `mapstructure:"max_tokens" json:"max_tokens"`
	SystemPrompt string `mapstructure:"system_prompt" json:"system_prompt"`

	// Vendor API keys. SENSITIVE: masked in MarshalJSON.
	OpenAIAPIKey    string `mapstructure:"openai_api_key" json:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" json:"anthropic_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key" json:"gemini_api_key"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// MCP tool servers
	MCP MCPConfig `mapstructure:"mcp" json:"mcp"`

	// HTTP server configuration (serve mode only)
	ServerAddr     string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins    []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy     bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".assistant")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env carry a dev setup.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// DefaultModels is the catalog used when the config names none.
func DefaultModels() []model.AIModel {
	return []model.AIModel{
		{ID: "gpt-5-mini", Vendor: model.VendorOpenAIChat, DisplayName: "GPT-5 Mini", Default: true},
		{ID: "gpt-5", Vendor: model.VendorOpenAIResponses, DisplayName: "GPT-5"},
		{ID: "claude-sonnet-4-5", Vendor: model.VendorClaude, DisplayName: "Claude Sonnet 4.5"},
		{ID: "gemini-2.5-flash", Vendor: model.VendorGemini, DisplayName: "Gemini 2.5 Flash"},
	}
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Generation defaults
	viper.SetDefault("max_tokens", 4096)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "assistant")
	viper.SetDefault("postgres_password", "assistant_dev_password")
	viper.SetDefault("postgres_db_name", "assistant")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP server defaults
	viper.SetDefault("server_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_limit_rps", 10.0)
	viper.SetDefault("rate_limit_burst", 20)
}

// bindEnvVariables binds sensitive environment variables explicitly.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("anthropic_api_key", "ANTHROPIC_API_KEY")
	mustBind("gemini_api_key", "GEMINI_API_KEY")

	mustBind("server_addr", "ASSISTANT_SERVER_ADDR")
	mustBind("cors_origins", "ASSISTANT_CORS_ORIGINS")
	mustBind("trust_proxy", "ASSISTANT_TRUST_PROXY")
	mustBind("system_prompt", "ASSISTANT_SYSTEM_PROMPT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against real secret characters.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of eight characters
// or fewer are fully masked; longer ones keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := *c
	masked.PostgresPassword = maskSecret(c.PostgresPassword)
	masked.OpenAIAPIKey = maskSecret(c.OpenAIAPIKey)
	masked.AnthropicAPIKey = maskSecret(c.AnthropicAPIKey)
	masked.GeminiAPIKey = maskSecret(c.GeminiAPIKey)
	masked.MCP.Servers = make([]mcp.Server, len(c.MCP.Servers))
	copy(masked.MCP.Servers, c.MCP.Servers)
	for i, s := range masked.MCP.Servers {
		if len(s.Headers) == 0 {
			continue
		}
		headers := make(map[string]string, len(s.Headers))
		for k := range s.Headers {
			headers[k] = maskedValue
		}
		masked.MCP.Servers[i].Headers = headers
	}
	return json.Marshal((*alias)(&masked))
}
