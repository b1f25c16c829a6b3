package mcp

// config.go handles MCP server filtering and environment resolution.
//
// Load() takes the raw server records from configuration and produces the
// effective registry for a turn:
//   - Enabled flag and whitelist/blacklist filtering (blacklist wins)
//   - Environment variable resolution ($VAR_NAME syntax)
//
// Explicit configuration only - no auto-detection, every server must be
// declared in config.

import (
	"log/slog"
	"os"
	"strings"
)

// Load filters the configured servers down to the ones a turn may use and
// resolves $VAR references in their env and header maps.
func Load(servers []Server, allowed, excluded []string, logger *slog.Logger) []Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(servers) == 0 {
		logger.Info("no MCP servers configured")
		return nil
	}

	candidates := make([]Server, 0, len(servers))
	for _, s := range servers {
		if !s.Enabled {
			continue
		}
		if s.Command == "" && s.Endpoint == "" {
			logger.Warn("skipping MCP server: needs either command or endpoint",
				"server", s.Name)
			continue
		}
		s.Env = resolveEnvVars(s.Env, logger)
		s.Headers = resolveEnvVars(s.Headers, logger)
		if s.AuthType == "" {
			s.AuthType = AuthNone
		}
		candidates = append(candidates, s)
	}

	if len(excluded) > 0 {
		candidates = filterExcluded(candidates, excluded, logger)
	}
	if len(allowed) > 0 {
		candidates = filterAllowed(candidates, allowed, logger)
	}

	logger.Info("MCP servers ready",
		"configured", len(servers),
		"active", len(candidates),
		"servers", Names(candidates))
	return candidates
}

// resolveEnvVars resolves $VAR_NAME references against the process
// environment. Literal values pass through unchanged.
func resolveEnvVars(m map[string]string, logger *slog.Logger) map[string]string {
	if m == nil {
		return nil
	}
	resolved := make(map[string]string, len(m))
	for key, value := range m {
		name, ok := strings.CutPrefix(value, "$")
		if !ok {
			resolved[key] = value
			continue
		}
		envValue := os.Getenv(name)
		if envValue == "" {
			logger.Warn("environment variable not set for MCP server",
				"env_var", name,
				"mapped_to", key)
		}
		resolved[key] = envValue
	}
	return resolved
}

// filterExcluded removes blacklisted servers.
func filterExcluded(candidates []Server, excluded []string, logger *slog.Logger) []Server {
	excludedSet := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		excludedSet[name] = true
	}

	filtered := make([]Server, 0, len(candidates))
	for _, c := range candidates {
		if excludedSet[c.Name] {
			logger.Info("excluded MCP server", "server", c.Name)
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// filterAllowed keeps only whitelisted servers.
func filterAllowed(candidates []Server, allowed []string, logger *slog.Logger) []Server {
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}

	filtered := make([]Server, 0, len(candidates))
	for _, c := range candidates {
		if !allowedSet[c.Name] {
			logger.Info("filtered out MCP server (not in allowed list)",
				"server", c.Name)
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}
