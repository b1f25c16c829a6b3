// Package mcp manages Model-Context-Protocol tool servers: the registry
// of configured servers and client sessions speaking the protocol via the
// official go-sdk.
//
// Server records are read-only during a turn; only the server-management
// surface mutates them. Processors read the registry to declare or invoke
// tools.
package mcp

// Auth types for a server. OAuth servers are the ones that can demand
// re-authentication mid-turn.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthOAuth  = "oauth"
)

// Server describes one configured MCP server. Exactly one of Command or
// Endpoint is set: Command spawns a local stdio server, Endpoint points
// at a streamable HTTP server.
type Server struct {
	Name     string            `mapstructure:"name"`
	Command  string            `mapstructure:"command"`
	Args     []string          `mapstructure:"args"`
	Env      map[string]string `mapstructure:"env"`
	Endpoint string            `mapstructure:"endpoint"`
	Headers  map[string]string `mapstructure:"headers"`
	AuthType string            `mapstructure:"auth_type"`
	Prompt   string            `mapstructure:"prompt"`
	Enabled  bool              `mapstructure:"enabled"`
}

// Names extracts the server names, preserving order. The auth error
// detector matches error text against this list.
func Names(servers []Server) []string {
	names := make([]string, 0, len(servers))
	for _, s := range servers {
		names = append(names, s.Name)
	}
	return names
}
