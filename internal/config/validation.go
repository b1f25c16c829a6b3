package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/koopa0/assistant/internal/model"
)

// Sentinel errors for validation failures. Checked with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrNoModels indicates the model catalog is empty.
	ErrNoModels = errors.New("no models configured")

	// ErrInvalidVendor indicates a model names an unknown vendor.
	ErrInvalidVendor = errors.New("invalid vendor")

	// ErrMissingAPIKey indicates a configured vendor has no API key.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidServerAddr indicates the HTTP listen address is empty.
	ErrInvalidServerAddr = errors.New("invalid server address")

	// ErrInvalidMCPServer indicates an MCP server entry is malformed.
	ErrInvalidMCPServer = errors.New("invalid MCP server")
)

var validVendors = []string{
	model.VendorOpenAIChat,
	model.VendorOpenAIResponses,
	model.VendorClaude,
	model.VendorGemini,
}

var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate checks configuration values, failing fast on the first
// problem. API keys are only required for vendors the catalog uses.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if len(c.Models) == 0 {
		return ErrNoModels
	}
	for _, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("%w: model with empty ID", ErrInvalidVendor)
		}
		if !slices.Contains(validVendors, m.Vendor) {
			return fmt.Errorf("%w: model %q has vendor %q", ErrInvalidVendor, m.ID, m.Vendor)
		}
	}
	if err := c.validateAPIKeys(); err != nil {
		return err
	}

	if c.MaxTokens < 0 || c.MaxTokens > 1_000_000 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.ServerAddr == "" {
		return ErrInvalidServerAddr
	}

	for _, s := range c.MCP.Servers {
		if s.Name == "" {
			return fmt.Errorf("%w: server with empty name", ErrInvalidMCPServer)
		}
		if s.Command != "" && s.Endpoint != "" {
			return fmt.Errorf("%w: server %q sets both command and endpoint", ErrInvalidMCPServer, s.Name)
		}
	}
	return nil
}

// validateAPIKeys requires a key for each vendor the catalog references.
func (c *Config) validateAPIKeys() error {
	for _, m := range c.Models {
		switch m.Vendor {
		case model.VendorOpenAIChat, model.VendorOpenAIResponses:
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("%w: OPENAI_API_KEY required for model %q", ErrMissingAPIKey, m.ID)
			}
		case model.VendorClaude:
			if c.AnthropicAPIKey == "" {
				return fmt.Errorf("%w: ANTHROPIC_API_KEY required for model %q", ErrMissingAPIKey, m.ID)
			}
		case model.VendorGemini:
			if c.GeminiAPIKey == "" {
				return fmt.Errorf("%w: GEMINI_API_KEY required for model %q", ErrMissingAPIKey, m.ID)
			}
		}
	}
	return nil
}
